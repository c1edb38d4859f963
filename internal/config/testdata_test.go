package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
apiVersion: gateway.filtergw.io/v1
kind: Gateway
metadata:
  name: test-gateway
spec:
  listener:
    port: 18080
  admin:
    enabled: true
    port: 18081
  routes:
    - id: users
      uri: http://users.internal:8080
      predicate: request.path.startsWith("/users")
      order: 1
    - id: catchall
      uri: http://default.internal
`

const invalidConfigYAML = `
apiVersion: gateway.filtergw.io/v1
kind: Gateway
metadata:
  name: test-gateway
spec:
  listener:
    port: -1
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
