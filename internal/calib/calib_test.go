package calib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/eye_wall/internal/gaze"
)

// blueServo is the bulk calibration measured for the blue 9g servos.
var blueServo = Entry{Min: 125, Mid: 332, Max: 499}

func TestCommandEndpoints(t *testing.T) {
	assert.Equal(t, 499, blueServo.Command(1.0))
	assert.Equal(t, 125, blueServo.Command(-1.0))
	assert.Equal(t, 332, blueServo.Command(0.0))
}

func TestCommandClampsBeyondUnit(t *testing.T) {
	assert.Equal(t, blueServo.Command(1.0), blueServo.Command(2.5))
	assert.Equal(t, blueServo.Command(-1.0), blueServo.Command(-7.0))
}

func TestCommandMonotonic(t *testing.T) {
	prev := blueServo.Command(-1.0)
	for v := -1.0; v <= 1.0; v += 0.01 {
		c := blueServo.Command(v)
		assert.GreaterOrEqual(t, c, prev, "command must be monotonic, broke at v=%g", v)
		prev = c
	}
}

func TestCommandAsymmetricRanges(t *testing.T) {
	// Mid is not the arithmetic midpoint; each side interpolates its own span.
	e := Entry{Min: 302, Mid: 352, Max: 362}
	assert.Equal(t, 352, e.Command(0))
	assert.Equal(t, 357, e.Command(0.5))  // 352 + 0.5*10
	assert.Equal(t, 327, e.Command(-0.5)) // 352 - 0.5*50
}

func TestCommandInverted(t *testing.T) {
	e := blueServo
	e.Inverted = true
	assert.Equal(t, 125, e.Command(1.0))
	assert.Equal(t, 499, e.Command(-1.0))
	assert.Equal(t, 332, e.Command(0.0))
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"valid", Entry{Min: 125, Mid: 332, Max: 499}, false},
		{"mid below min", Entry{Min: 300, Mid: 200, Max: 400}, true},
		{"mid equals max", Entry{Min: 100, Mid: 400, Max: 400}, true},
		{"above pulse ceiling", Entry{Min: 100, Mid: 2000, Max: 5000}, true},
		{"negative min", Entry{Min: -1, Mid: 10, Max: 20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTableLookup(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Set(0, gaze.Horizontal, blueServo))

	got, err := table.Lookup(0, gaze.Horizontal)
	require.NoError(t, err)
	assert.Equal(t, blueServo, got)

	_, err = table.Lookup(0, gaze.Vertical)
	assert.True(t, errors.Is(err, ErrUnconfiguredEye))

	_, err = table.Lookup(3, gaze.Horizontal)
	assert.True(t, errors.Is(err, ErrUnconfiguredEye))
}

func TestTableToCommand(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Set(2, gaze.Vertical, blueServo))

	cmd, err := table.ToCommand(2, gaze.Vertical, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 499, cmd)

	_, err = table.ToCommand(2, gaze.Horizontal, 1.0)
	assert.ErrorIs(t, err, ErrUnconfiguredEye)
}

func TestTableSetRejectsInvalid(t *testing.T) {
	table := NewTable()
	assert.Error(t, table.Set(0, gaze.Horizontal, Entry{Min: 10, Mid: 5, Max: 20}))
}
