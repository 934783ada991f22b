//go:build !linux

package formatkit

func statfsType(path string) (string, bool) {
	return "", false
}
