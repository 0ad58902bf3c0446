// Package processor holds the transformation steps that run between the
// codec and the handlers. A step maps one message to any number of messages
// and may only touch the session it is given.
package processor

import (
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/session"
)

type Processor interface {
	Process(s *session.Session, m protocol.Message) ([]protocol.Message, error)
}

type Func func(s *session.Session, m protocol.Message) ([]protocol.Message, error)

func (f Func) Process(s *session.Session, m protocol.Message) ([]protocol.Message, error) {
	return f(s, m)
}

// Run feeds m through chain, each step receiving every output of the step
// before it in order.
func Run(chain []Processor, s *session.Session, m protocol.Message) ([]protocol.Message, error) {
	msgs := []protocol.Message{m}
	for _, p := range chain {
		var next []protocol.Message
		for _, in := range msgs {
			out, err := p.Process(s, in)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		msgs = next
		if len(msgs) == 0 {
			break
		}
	}
	return msgs, nil
}

func one(m protocol.Message) []protocol.Message {
	return []protocol.Message{m}
}
