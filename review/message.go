package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/pithecene-io/patchreview/editor"
	"github.com/pithecene-io/patchreview/iox"
)

// MessageFunc supplies the commit message for a file. An empty message
// means no commit.
type MessageFunc func(ctx context.Context, filename string) (string, error)

// messageTemplate is shown in the editor; lines starting with "#" are
// removed from the result.
const messageTemplate = `
# Enter the commit message for %s.
# Lines starting with '#' are ignored; an empty message skips the commit.
`

// EditorMessages returns a MessageFunc that opens the resolved editor on a
// template for each file.
func EditorMessages(r editor.Resolver, tempDir string) MessageFunc {
	return func(ctx context.Context, filename string) (string, error) {
		initial := fmt.Sprintf(messageTemplate, filename)
		s, err := editor.Spawn(ctx, r, editor.Options{InitialContent: &initial, TempDir: tempDir})
		if err != nil {
			return "", fmt.Errorf("failed to start editor: %w", err)
		}
		defer s.Close()

		content, err := s.Wait()
		if s.Owned() {
			_ = iox.RemoveIfExists(s.Path())
		}
		if err != nil {
			return "", err
		}
		return StripComments(content), nil
	}
}

// StripComments removes "#" lines and surrounding blank lines.
func StripComments(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
