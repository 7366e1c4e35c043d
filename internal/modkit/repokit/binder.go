package repokit

// Binder binds a repo to a Queryer, either the pool or an open transaction
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a function to Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind panics on a nil q, then binds
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: nil Queryer")
	}
	return b.Bind(q)
}
