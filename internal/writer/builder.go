// internal/writer/builder.go
package writer

import (
	"github.com/rs/zerolog"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/poller"
)

// Build constructs a Dispatcher over the registry's output cards and
// logs what is addressable.
func Build(reg *cards.Registry, exec poller.Executor, log zerolog.Logger) (*Dispatcher, error) {
	d, err := New(reg.Outputs(), exec, log)
	if err != nil {
		return nil, err
	}

	for _, c := range d.Outputs() {
		log.Debug().
			Int("output", c.OutputIndex).
			Str("card", c.Topic()).
			Uint16("start", c.Start).
			Int("channels", c.Channels).
			Bool("read_on_write", c.ReadOnWrite).
			Msg("output card")
	}
	return d, nil
}
