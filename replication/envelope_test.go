package replication

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosage/game"
)

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "empty", in: "", want: ErrEmptyEnvelope},
		{name: "missing type", in: `{"roomId":"ABCDEF"}`, want: ErrMissingType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Decode([]byte("{"))
	assert.Error(t, err)
}

func TestEncode_RequiresType(t *testing.T) {
	_, err := Encode(Envelope{RoomID: "ABCDEF"})
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestEnvelope_TimestampIsMillis(t *testing.T) {
	env, err := NewEnvelope(EventHeartbeat, "ABCDEF", "p1", 4, testNow, nil)
	require.NoError(t, err)
	assert.Equal(t, testNow.UnixMilli(), env.Timestamp)
	assert.True(t, testNow.Equal(env.Time()))
	assert.Empty(t, env.Payload)

	_, err = DecodePayload[LinkPayload](env)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestIntentFor_RebuildsSenderIntent(t *testing.T) {
	target := &game.Target{PillID: "pill-1"}
	env, err := NewEnvelope(EventItemUsed, "ABCDEF", "guest", 7, testNow, ItemUsedPayload{ItemID: "item-1", Target: target})
	require.NoError(t, err)

	in, err := intentFor(env)
	require.NoError(t, err)
	assert.Equal(t, game.UseItem{PlayerID: "guest", ItemID: "item-1", Target: target, At: env.Time()}, in)

	env.Type = "teleport"
	_, err = intentFor(env)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEventFor_SkipsLocalOnlyIntents(t *testing.T) {
	next := game.NewState()
	next.Targeting = &game.TargetSelection{PlayerID: "p1", ItemID: "item-1"}
	_, _, ok := eventFor(game.UseItem{PlayerID: "p1", ItemID: "item-1"}, game.NewState(), next)
	assert.False(t, ok)

	typ, payload, ok := eventFor(game.ChooseTarget{PlayerID: "p1", Target: game.Target{PlayerID: "p2"}}, next, game.NewState())
	require.True(t, ok)
	assert.Equal(t, EventItemUsed, typ)
	assert.Equal(t, ItemUsedPayload{ItemID: "item-1", Target: &game.Target{PlayerID: "p2"}}, payload)

	for _, in := range []game.Intent{game.CancelTargeting{}, game.FinishRound{}, game.CloseShop{}, game.ResetGame{}} {
		_, _, ok := eventFor(in, game.NewState(), game.NewState())
		assert.False(t, ok, in.IntentName())
	}
}

func TestRoomCode(t *testing.T) {
	for range 50 {
		code := NewRoomCode()
		parsed, err := ParseCode(FormatCode(code))
		require.NoError(t, err)
		assert.Equal(t, code, parsed)
	}

	assert.Equal(t, "ABC-DEF", FormatCode("ABCDEF"))
	parsed, err := ParseCode(" abc-def ")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", parsed)

	for _, bad := range []string{"", "ABC", "ABCDE0", "ABCDEI", "ABCDEFG"} {
		_, err := ParseCode(bad)
		assert.ErrorIs(t, err, ErrInvalidRoomCode, bad)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewRoomCode_Reader(t *testing.T) {
	// 0..31 は文字集合をそのまま、32 以上は折り返す
	code, err := newRoomCode(bytes.NewReader([]byte{0, 7, 31, 32, 63, 255}))
	require.NoError(t, err)
	assert.Equal(t, "AH9A99", code)

	_, err = newRoomCode(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err, "short read")
	_, err = newRoomCode(failingReader{})
	assert.Error(t, err)
}

func TestRoomStatus_Terminal(t *testing.T) {
	assert.True(t, RoomFinished.Terminal())
	assert.True(t, RoomAbandoned.Terminal())
	assert.False(t, RoomPlaying.Terminal())
}
