package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAudioProbe(t *testing.T) {
	for _, tc := range []struct {
		name     string
		input    string
		hasAudio bool
		err      bool
	}{
		{
			"one audio stream",
			`{"streams":[{"index":1,"codec_type":"audio","codec_name":"aac"}]}`,
			true,
			false,
		},
		{
			"two audio streams",
			`{"streams":[{"codec_type":"audio"},{"codec_type":"audio"}]}`,
			true,
			false,
		},
		{"no streams", `{"streams":[]}`, false, false},
		{"missing streams key", `{"format":{}}`, false, false},
		{"empty object", `{}`, false, false},
		{"garbage", `not json`, false, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			hasAudio, err := ParseAudioProbe([]byte(tc.input))

			if tc.err {
				a.Error(err)
				return
			}

			a.NoError(err)
			a.Equal(tc.hasAudio, hasAudio)
		})
	}
}
