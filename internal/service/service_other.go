//go:build !linux

package service

func installImpl(cfg ServiceConfig, execPath string) error {
	return ErrUnsupported
}

func uninstallImpl(serviceName string) error {
	return ErrUnsupported
}

func statusImpl(serviceName string) (string, error) {
	return "", ErrUnsupported
}

func isInstalledImpl(serviceName string) bool {
	return false
}
