package otamail

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden-file corpus: one .txt body per notification layout, expected
// segment beside it.
func TestExtractGuestSegment_Fixtures(t *testing.T) {
	fixtures, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, fixtures, "fixture corpus must not be empty")

	for _, path := range fixtures {
		name := strings.TrimSuffix(filepath.Base(path), ".txt")
		t.Run(name, func(t *testing.T) {
			body, err := os.ReadFile(path)
			require.NoError(t, err)
			golden, err := os.ReadFile(filepath.Join("testdata", name+".golden"))
			require.NoError(t, err)

			got := ExtractGuestSegment(string(body))
			assert.Equal(t, strings.TrimSpace(string(golden)), got)
		})
	}
}

func TestExtractGuestSegment_Edges(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t\n", ""},
		{
			"boilerplate only",
			"사전 승인 보내기\n수신 거부",
			"",
		},
		{
			"tracking url line dropped",
			"South Korea\nJoined in 2020\n\n주소 알려주세요\nhttps://www.airbnb.com/rooms/99\n\nPre-approve",
			"주소 알려주세요",
		},
		{
			"cta inside guest text cuts the tail",
			"대한민국\n\n방 예쁘네요\n사전 승인 가능한가요",
			"방 예쁘네요",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractGuestSegment(tt.in))
		})
	}
}

func TestIsCountryLine(t *testing.T) {
	assert.True(t, isCountryLine("대한민국"))
	assert.True(t, isCountryLine("Seoul, South Korea"))
	assert.True(t, isCountryLine("San Francisco, United States"))
	assert.False(t, isCountryLine("Somewhere, Atlantis"))
	assert.False(t, isCountryLine(""))
	assert.False(t, isCountryLine("I love Korea very much and this line is definitely too long to be a profile row"))
}
