package chunk

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validChunk() Chunk {
	return Chunk{
		ID:      "doc:0001",
		Kind:    KindText,
		Content: "some content",
		Metadata: Metadata{
			OriginalFilename: "notes.pdf",
			ChunkID:          "doc:0001",
			UploadTimestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			SourceURL:        "upload://notes.pdf",
		},
	}
}

func TestChunkValidate(t *testing.T) {
	t.Run("valid chunk passes", func(t *testing.T) {
		c := validChunk()
		assert.NoError(t, c.Validate())
	})

	t.Run("required fields are enforced", func(t *testing.T) {
		mutations := map[string]func(*Chunk){
			"missing id":        func(c *Chunk) { c.ID = "" },
			"invalid kind":      func(c *Chunk) { c.Kind = "video" },
			"missing filename":  func(c *Chunk) { c.Metadata.OriginalFilename = "" },
			"missing chunk id":  func(c *Chunk) { c.Metadata.ChunkID = "" },
			"missing timestamp": func(c *Chunk) { c.Metadata.UploadTimestamp = time.Time{} },
			"missing source":    func(c *Chunk) { c.Metadata.SourceURL = "" },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				c := validChunk()
				mutate(&c)
				assert.Error(t, c.Validate())
			})
		}
	})
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindText, KindImageCaption, KindImageOCR, KindImageTags, KindImage, KindAudioTranscript} {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, Kind("video").Valid())
}

func TestCandidatePreview(t *testing.T) {
	c := Candidate{Chunk: validChunk()}
	assert.Equal(t, "some content", c.Preview(200))

	c.Content = strings.Repeat("z", 250)
	got := c.Preview(200)
	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))
}
