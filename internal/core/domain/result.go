package domain

// Result est l'enveloppe renvoyée par le service de follow.
// Les refus métier et les pannes d'infra n'échappent jamais sous forme d'erreur Go :
// ils sont portés par Success=false + Err.
type Result[T any] struct {
	Success bool
	Message string
	Data    T
	Err     error
	// Degraded signale qu'une panne du store a été avalée :
	// Data est alors une valeur par défaut ou partielle, pas un "vrai zéro".
	Degraded bool
}

func Ok[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

func Fail[T any](data T, message string, err error) Result[T] {
	return Result[T]{Success: false, Message: message, Data: data, Err: err}
}
