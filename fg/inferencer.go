package fg

// Inferencer computes marginals and the partition function of a graph.
type Inferencer interface {
	Run()

	// Marginals returns P(v) as a probability-domain tensor.
	Marginals(v *Var) *VarTensor
	// LogMarginals returns log P(v) as a log-domain tensor.
	LogMarginals(v *Var) *VarTensor
	// FactorMarginals returns the probability-domain belief over f's
	// configurations, or nil when the inferencer cannot provide one.
	FactorMarginals(f Factor) *VarTensor

	Partition() float64
	LogPartition() float64
}

// MessageSource is implemented by inferencers that keep the messages each
// factor last received. Structured factors use it to compute expectations
// without enumerating their configurations.
type MessageSource interface {
	FactorInMessages(f Factor) []*VarTensor
}
