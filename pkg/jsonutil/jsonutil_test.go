package jsonutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/rip-project/rip/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMarshal_SortsKeys(t *testing.T) {
	data, err := jsonutil.CanonicalMarshal(map[string]any{"b": 1, "a": "x", "c": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":[true,null]}`, string(data))
}

func TestCanonicalMarshal_StructTags(t *testing.T) {
	type rec struct {
		Zeta  string `json:"zeta"`
		Alpha int64  `json:"alpha"`
	}
	data, err := jsonutil.CanonicalMarshal(rec{Zeta: "z", Alpha: 9007199254740993})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":9007199254740993,"zeta":"z"}`, string(data))
}

func TestCanonicalMarshal_Deterministic(t *testing.T) {
	v := map[string]any{"nested": map[string]any{"y": 2, "x": 1}, "k": "v"}
	first, err := jsonutil.CanonicalMarshal(v)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := jsonutil.CanonicalMarshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCanonicalMarshal_Unsupported(t *testing.T) {
	_, err := jsonutil.CanonicalMarshal(make(chan int))
	assert.Error(t, err)
}

func TestScanLines(t *testing.T) {
	input := "one\n\n  \ntwo\r\nthree"
	var got []string
	var nums []int
	err := jsonutil.ScanLines(strings.NewReader(input), func(n int, line []byte) error {
		got = append(got, string(line))
		nums = append(nums, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, []int{1, 4, 5}, nums)
}

func TestScanLines_StopsOnError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := jsonutil.ScanLines(strings.NewReader("a\nb\nc\n"), func(int, []byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestScanLines_DeliversOverlongLine(t *testing.T) {
	long := strings.Repeat("\x00", jsonutil.MaxLine+1)
	var lens []int
	err := jsonutil.ScanLines(strings.NewReader("a\n"+long+"\nb\n"), func(_ int, line []byte) error {
		lens = append(lens, len(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, jsonutil.MaxLine + 1, 1}, lens)
}

func TestMarshalLine(t *testing.T) {
	data, err := jsonutil.MarshalLine(map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":\"b\"}\n", string(data))
}
