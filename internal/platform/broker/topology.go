package broker

import (
	"fmt"
	"strings"
)

// KindTopic is the only exchange kind cityfix declares.
const KindTopic = "topic"

// DeadQueueSuffix is appended to a queue name to form its dead-letter queue.
const DeadQueueSuffix = ".dead"

type Exchange struct {
	Name    string
	Kind    string
	Durable bool
}

type Queue struct {
	Name                 string
	Durable              bool
	DeadLetterExchange   string
	DeadLetterRoutingKey string
}

type Binding struct {
	Exchange string
	Queue    string
	Pattern  string
}

// Topology is the set of exchanges, queues and bindings a service declares
// at startup.
type Topology struct {
	Exchanges []Exchange
	Queues    []Queue
	Bindings  []Binding
}

// TopicExchange returns a durable topic exchange.
func TopicExchange(name string) Exchange {
	return Exchange{Name: name, Kind: KindTopic, Durable: true}
}

// DurableQueue returns a durable queue without dead-lettering.
func DurableQueue(name string) Queue {
	return Queue{Name: name, Durable: true}
}

// Validate checks names, duplicate declarations and binding references.
func (t Topology) Validate() error {
	exchanges := make(map[string]Exchange, len(t.Exchanges))
	for _, ex := range t.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchange name is required")
		}
		if ex.Kind != KindTopic {
			return fmt.Errorf("exchange %s: unsupported kind %q", ex.Name, ex.Kind)
		}
		if prev, ok := exchanges[ex.Name]; ok && prev != ex {
			return fmt.Errorf("exchange %s declared twice with different properties", ex.Name)
		}
		exchanges[ex.Name] = ex
	}
	queues := make(map[string]Queue, len(t.Queues))
	for _, q := range t.Queues {
		if q.Name == "" {
			return fmt.Errorf("queue name is required")
		}
		if prev, ok := queues[q.Name]; ok && prev != q {
			return fmt.Errorf("queue %s declared twice with different properties", q.Name)
		}
		if q.DeadLetterExchange != "" {
			if _, ok := exchanges[q.DeadLetterExchange]; !ok {
				return fmt.Errorf("queue %s: dead-letter exchange %s is not declared", q.Name, q.DeadLetterExchange)
			}
		}
		queues[q.Name] = q
	}
	for _, b := range t.Bindings {
		if _, ok := exchanges[b.Exchange]; !ok {
			return fmt.Errorf("binding %s -> %s: exchange not declared", b.Exchange, b.Queue)
		}
		if _, ok := queues[b.Queue]; !ok {
			return fmt.Errorf("binding %s -> %s: queue not declared", b.Exchange, b.Queue)
		}
		if b.Pattern == "" {
			return fmt.Errorf("binding %s -> %s: pattern is required", b.Exchange, b.Queue)
		}
	}
	return nil
}

// Merge returns the union of t and other, dropping identical duplicates.
func (t Topology) Merge(other Topology) Topology {
	out := Topology{}
	seenEx := map[Exchange]bool{}
	seenQ := map[Queue]bool{}
	seenB := map[Binding]bool{}
	for _, ex := range append(append([]Exchange{}, t.Exchanges...), other.Exchanges...) {
		if !seenEx[ex] {
			seenEx[ex] = true
			out.Exchanges = append(out.Exchanges, ex)
		}
	}
	for _, q := range append(append([]Queue{}, t.Queues...), other.Queues...) {
		if !seenQ[q] {
			seenQ[q] = true
			out.Queues = append(out.Queues, q)
		}
	}
	for _, b := range append(append([]Binding{}, t.Bindings...), other.Bindings...) {
		if !seenB[b] {
			seenB[b] = true
			out.Bindings = append(out.Bindings, b)
		}
	}
	return out
}

// WithDeadLettering returns a copy of t in which every queue dead-letters to
// dlx, routed by its own name into a durable "<queue>.dead" queue.
// Applying it twice yields the same topology.
func (t Topology) WithDeadLettering(dlx string) Topology {
	out := Topology{
		Exchanges: append([]Exchange{}, t.Exchanges...),
		Bindings:  append([]Binding{}, t.Bindings...),
	}
	hasDLX := false
	for _, ex := range out.Exchanges {
		if ex.Name == dlx {
			hasDLX = true
		}
	}
	if !hasDLX {
		out.Exchanges = append(out.Exchanges, TopicExchange(dlx))
	}

	existing := map[string]bool{}
	for _, q := range t.Queues {
		existing[q.Name] = true
	}
	for _, q := range t.Queues {
		if IsDeadLetterQueue(q.Name) {
			out.Queues = append(out.Queues, q)
			continue
		}
		q.DeadLetterExchange = dlx
		q.DeadLetterRoutingKey = q.Name
		out.Queues = append(out.Queues, q)

		dead := q.Name + DeadQueueSuffix
		if existing[dead] {
			continue
		}
		out.Queues = append(out.Queues, DurableQueue(dead))
		out.Bindings = append(out.Bindings, Binding{Exchange: dlx, Queue: dead, Pattern: q.Name})
	}
	return out
}

// IsDeadLetterQueue reports whether name is a "<queue>.dead" queue.
func IsDeadLetterQueue(name string) bool {
	return strings.HasSuffix(name, DeadQueueSuffix)
}

// Queue looks up a declared queue by name.
func (t Topology) Queue(name string) (Queue, bool) {
	for _, q := range t.Queues {
		if q.Name == name {
			return q, true
		}
	}
	return Queue{}, false
}

// BindingsFor returns the bindings that feed queue.
func (t Topology) BindingsFor(queue string) []Binding {
	var out []Binding
	for _, b := range t.Bindings {
		if b.Queue == queue {
			out = append(out, b)
		}
	}
	return out
}

// MatchRoutingKey reports whether a dot-separated routing key matches a
// topic binding pattern. "*" matches exactly one segment, "#" zero or more.
func MatchRoutingKey(pattern, key string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchSegments(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchSegments(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
