//go:build !windows

package bridge

import "github.com/pkg/errors"

// NewNativeClient is only available on windows, where the host's
// shared-memory ring library is a loadable DLL (spec §6). On other
// platforms there is no host to bridge to; callers fall back to the
// in-process memring implementation for development and tests.
func NewNativeClient(dllPath string) (Client, error) {
	return nil, errors.New("bridge: native backend requires windows")
}
