package version

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestFull includes the release tag and the platform.
func TestFull(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), "contact-ringer "+Short())
	require.Contains(t, Full(), runtime.GOOS+"/"+runtime.GOARCH)
}

// TestAttachCobraVersionCommand prints the build through the subcommand.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "ringer-ctl"}
	AttachCobraVersionCommand(root)

	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Full()+"\n", out.String())
}
