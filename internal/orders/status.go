package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusInProcess Status = "InProcess"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Cancellation is only reachable from Pending: once staff start preparing a
// drink the ingredients are physically gone, so crediting them back would be
// wrong. Completed and Cancelled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusInProcess: true, StatusCancelled: true},
	StatusInProcess: {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProcess, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
