package carts

// Merge folds a guest cart into a user cart.
//
// Remote lines keep their order. A local line whose book is already present adds its
// quantity to the remote line; any other local line is appended in local order.
// Neither input is modified.
func Merge(remote, local Cart) Cart {
	out := remote.Clone()
	for _, l := range local.Lines {
		if l.Quantity <= 0 {
			continue
		}
		if i := out.index(l.Book.ID); i >= 0 {
			out.Lines[i].Quantity += l.Quantity
			continue
		}
		out.Lines = append(out.Lines, l)
	}
	return out
}
