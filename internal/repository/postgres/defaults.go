package postgres

const (
	defaultRunsLimit = 100
)
