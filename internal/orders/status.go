package orders

type Status string

const (
	StatusPending Status = "Pending"
	StatusDone    Status = "Done"
)

var validNext = map[Status]map[Status]bool{
	StatusPending: {StatusDone: true},
	StatusDone:    {StatusDone: true}, // repeated fulfillment is a no-op
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
