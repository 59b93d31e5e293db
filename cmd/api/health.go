package main

import "net/http"

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":      "ok",
		"env":         app.config.env,
		"version":     version,
		"local_store": app.config.local.backend,
		"sessions":    app.sessions.len(),
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
