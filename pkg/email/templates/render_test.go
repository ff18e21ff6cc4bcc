package templates_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/pkg/email/templates"
)

func TestRender(t *testing.T) {
	t.Parallel()

	t.Run("writes component output", func(t *testing.T) {
		t.Parallel()
		c := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "<p>"+templ.EscapeString("Bún & Phở")+"</p>")
			return err
		})
		out, err := templates.Render(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, "<p>Bún &amp; Phở</p>", out)
	})

	t.Run("propagates render error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		c := templ.ComponentFunc(func(context.Context, io.Writer) error { return boom })
		out, err := templates.Render(context.Background(), c)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, out)
	})
}
