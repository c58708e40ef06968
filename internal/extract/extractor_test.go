package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/xetraetl/internal/blob/memblob"
	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/tablestore"
)

const header = "ISIN,Date,Time,StartPrice\n"

func newExtractor(blobs *memblob.Store, opts ...Option) *Extractor {
	return New(tablestore.New(blobs, nil), opts...)
}

func TestExtractConcatenatesInDateThenKeyOrder(t *testing.T) {
	blobs := memblob.New()
	blobs.Seed("2021-04-17/2021-04-17_BINS_XETR08.csv", []byte(header+"DE0002,2021-04-17,08:00,7\n"))
	blobs.Seed("2021-04-16/2021-04-16_BINS_XETR09.csv", []byte(header+"DE0001,2021-04-16,09:00,100\nDE0001,2021-04-16,09:01,101\n"))
	blobs.Seed("2021-04-16/2021-04-16_BINS_XETR08.csv", []byte(header+"DE0001,2021-04-16,08:00,99\n"))

	out, err := newExtractor(blobs, WithWorkers(3)).Extract(context.Background(), []string{"2021-04-16", "2021-04-17"})
	require.NoError(t, err)

	require.Equal(t, 4, out.Len())
	var times []string
	for i := 0; i < out.Len(); i++ {
		v, _ := out.Cell(i, "Time")
		times = append(times, v)
	}
	assert.Equal(t, []string{"08:00", "09:00", "09:01", "08:00"}, times)
}

func TestExtractOrderIndependentOfWorkers(t *testing.T) {
	blobs := memblob.New()
	for h := 8; h < 18; h++ {
		key := fmt.Sprintf("2021-04-16/2021-04-16_BINS_XETR%02d.csv", h)
		blobs.Seed(key, []byte(fmt.Sprintf("%sDE0001,2021-04-16,%02d:00,%d\n", header, h, h)))
	}

	serial, err := newExtractor(blobs, WithWorkers(1)).Extract(context.Background(), []string{"2021-04-16"})
	require.NoError(t, err)
	parallel, err := newExtractor(blobs, WithWorkers(16)).Extract(context.Background(), []string{"2021-04-16"})
	require.NoError(t, err)

	require.Equal(t, serial.Len(), parallel.Len())
	for i := 0; i < serial.Len(); i++ {
		assert.Equal(t, serial.Row(i), parallel.Row(i))
	}
}

func TestExtractNothingFound(t *testing.T) {
	out, err := newExtractor(memblob.New()).Extract(context.Background(), []string{"2021-04-16"})
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestExtractKeyPrefix(t *testing.T) {
	blobs := memblob.New()
	blobs.Seed("xetra/2021-04-16/a.csv", []byte(header+"DE0001,2021-04-16,09:00,1\n"))

	out, err := newExtractor(blobs, WithKeyPrefix("xetra/")).Extract(context.Background(), []string{"2021-04-16"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestExtractListFailure(t *testing.T) {
	blobs := memblob.New()
	blobs.Fail("2021-04-17", errors.New("access denied"))

	_, err := newExtractor(blobs).Extract(context.Background(), []string{"2021-04-16", "2021-04-17"})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestExtractReadFailureAbortsRun(t *testing.T) {
	blobs := memblob.New()
	blobs.Seed("2021-04-16/a.csv", []byte(header+"DE0001,2021-04-16,09:00,1\n"))
	blobs.Seed("2021-04-16/b.csv", []byte(header+"DE0001,2021-04-16,10:00,1\n"))
	blobs.Fail("2021-04-16/b.csv", errors.New("connection reset"))

	out, err := newExtractor(blobs).Extract(context.Background(), []string{"2021-04-16"})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Nil(t, out)
}

func TestExtractMalformedObject(t *testing.T) {
	blobs := memblob.New()
	blobs.Seed("2021-04-16/a.csv", []byte("ISIN,Date\n\"unterminated\n"))

	_, err := newExtractor(blobs).Extract(context.Background(), []string{"2021-04-16"})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
