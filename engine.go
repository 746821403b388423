package qsim

/*
Apply transforms s in place by g acting on targets, conditioned on every
control qubit being 1. It runs inline on the calling goroutine. Invalid
arguments are rejected before the store is touched.
*/
func Apply(s *Store, g Gate, targets, controls []int) error {
	p, err := NewPlan(s.qubits, g, targets, controls)
	if err != nil {
		return err
	}

	return newInlineHost(s).Apply(p)
}
