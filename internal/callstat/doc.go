// Package callstat counts and times invocations of the engine's fixed set of
// entry points. A Registry holds one counter pair per OperationKind; callers
// bracket an operation with Start and End, which are wait-free and safe from
// any number of goroutines. Report renders the table, plus the acquisition
// layer's own statistics block, as fixed-width text.
package callstat
