// Package notifier delivers controller events to one or more sinks. The flow
// is strictly one-way: a notifier never calls back into the controller.
package notifier

type Notifier interface {
	Notify(string)
}

type Notifiers []Notifier

func (n Notifiers) Notify(msg string) {
	for _, l := range n {
		l.Notify(msg)
	}
}
