package writeconcern_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/writeconcern"
)

func TestWriteConcern_Acknowledged(t *testing.T) {
	t.Parallel()

	var nilWC *writeconcern.WriteConcern
	require.True(t, nilWC.Acknowledged())
	require.True(t, writeconcern.New().Acknowledged())
	require.True(t, writeconcern.New(writeconcern.W(1)).Acknowledged())
	require.True(t, writeconcern.New(writeconcern.WMajority()).Acknowledged())
	require.False(t, writeconcern.New(writeconcern.W(0)).Acknowledged())

	// journaling implies acknowledgement regardless of w
	require.True(t, writeconcern.New(writeconcern.W(0), writeconcern.J(true)).Acknowledged())
}

func TestWriteConcern_IsValid(t *testing.T) {
	t.Parallel()

	require.True(t, writeconcern.New().IsValid())
	require.True(t, writeconcern.New(writeconcern.W(1), writeconcern.J(true)).IsValid())
	require.False(t, writeconcern.New(writeconcern.W(0), writeconcern.J(true)).IsValid())
}

func TestWriteConcern_GetLastErrorCommand(t *testing.T) {
	t.Parallel()

	cmd, err := writeconcern.New().GetLastErrorCommand()
	require.NoError(t, err)
	require.Equal(t, bson.D{{Name: "getLastError", Value: 1}}, cmd)

	cmd, err = writeconcern.New(
		writeconcern.WMajority(),
		writeconcern.J(true),
		writeconcern.WTimeout(5*time.Second),
	).GetLastErrorCommand()
	require.NoError(t, err)
	require.Equal(t, bson.D{
		{Name: "getLastError", Value: 1},
		{Name: "w", Value: "majority"},
		{Name: "j", Value: true},
		{Name: "wtimeout", Value: int64(5000)},
	}, cmd)

	_, err = writeconcern.New(writeconcern.W(0), writeconcern.J(true)).GetLastErrorCommand()
	require.Error(t, err)
}
