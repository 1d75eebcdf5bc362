package replay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/event/payload"
	"github.com/dshills/relay/internal/event/topic"
)

type emitted struct {
	name topic.Name
	args []any
}

// recorder is an Emitter that records every call.
type recorder struct {
	got  []emitted
	fail map[topic.Name]error
}

func (r *recorder) Emit(ctx context.Context, name topic.Name, args ...any) error {
	r.got = append(r.got, emitted{name, args})
	return r.fail[name]
}

func TestRun_ArgsAndPayload(t *testing.T) {
	log := `{"event":"user:login","args":["alice",3,true,null]}

{"event":"order:placed","payload":{"id":"o1","total":12.5}}
{"event":"mixed","args":[{"k":1}],"payload":"tail"}
`
	rec := &recorder{}
	sum, err := Run(context.Background(), strings.NewReader(log), rec)
	require.NoError(t, err)

	assert.Equal(t, Summary{Lines: 4, Emitted: 3, Skipped: 1}, sum)
	require.Len(t, rec.got, 3)

	assert.Equal(t, topic.Name("user:login"), rec.got[0].name)
	assert.Equal(t, []any{"alice", float64(3), true, nil}, rec.got[0].args)

	require.Len(t, rec.got[1].args, 1)
	order, ok := rec.got[1].args[0].(payload.JSON)
	require.True(t, ok)
	assert.Equal(t, "o1", order.Get("id").String())
	assert.Equal(t, 12.5, order.Get("total").Float())

	assert.Equal(t, []any{payload.JSON(`{"k":1}`), "tail"}, rec.got[2].args)
}

func TestRun_Annotate(t *testing.T) {
	log := "\n" + `{"event":"e","payload":{"a":1},"args":["x"]}`
	rec := &recorder{}

	_, err := Run(context.Background(), strings.NewReader(log), rec, WithAnnotate())
	require.NoError(t, err)

	require.Len(t, rec.got, 1)
	assert.Equal(t, "x", rec.got[0].args[0])
	p := rec.got[0].args[1].(payload.JSON)
	assert.Equal(t, int64(2), p.Get("_replay.line").Int())
	assert.Equal(t, int64(1), p.Get("a").Int())
}

func TestRun_MalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"not json", `{"event":`, ErrMalformed},
		{"not object", `[1,2]`, ErrMalformed},
		{"no event", `{"args":[]}`, ErrNoEvent},
		{"empty event", `{"event":""}`, ErrNoEvent},
		{"numeric event", `{"event":5}`, ErrNoEvent},
		{"args not array", `{"event":"e","args":{"a":1}}`, ErrArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			log := `{"event":"ok"}` + "\n" + tt.line + "\n" + `{"event":"after"}`

			sum, err := Run(context.Background(), strings.NewReader(log), rec)

			var lerr *LineError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, 2, lerr.Line)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Summary{Lines: 2, Emitted: 1, Failed: 1}, sum)
			assert.Len(t, rec.got, 1)
		})
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{fail: map[topic.Name]error{"bad": boom}}
	log := strings.Join([]string{
		`{"event":"a"}`,
		`garbage`,
		`{"event":"bad"}`,
		`{"event":"b"}`,
	}, "\n")

	sum, err := Run(context.Background(), strings.NewReader(log), rec, WithContinueOnError())

	assert.Equal(t, Summary{Lines: 4, Emitted: 2, Failed: 2}, sum)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrMalformed)
	assert.ErrorIs(t, errs[1], boom)
}

func TestRun_Match(t *testing.T) {
	rec := &recorder{}
	log := `{"event":"user:a"}` + "\n" + `{"event":"order:b"}` + "\n" + `{"event":"user:c"}`

	sum, err := Run(context.Background(), strings.NewReader(log), rec, WithMatch(topic.MustGlob("user:*")))
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Emitted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, topic.Name("user:c"), rec.got[1].name)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	_, err := Run(ctx, strings.NewReader(`{"event":"a"}`), rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.got)
}

func TestRun_ThroughRegistry(t *testing.T) {
	reg := event.NewRegistry()

	var ids []string
	_, err := reg.SubscribeFunc(topic.Name("order:placed"), func(ctx context.Context, e event.Event) error {
		p, ok := payload.FromEvent(e)
		require.True(t, ok)
		ids = append(ids, p.Get("id").String())
		return nil
	}, event.WithFilter(payload.Where("status", "paid")))
	require.NoError(t, err)

	log := strings.Join([]string{
		`{"event":"order:placed","payload":{"id":"o1","status":"paid"}}`,
		`{"event":"order:placed","payload":{"id":"o2","status":"open"}}`,
		`{"event":"order:placed","payload":{"id":"o3","status":"paid"}}`,
	}, "\n")

	sum, err := Run(context.Background(), strings.NewReader(log), reg)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Emitted)
	assert.Equal(t, []string{"o1", "o3"}, ids)
}
