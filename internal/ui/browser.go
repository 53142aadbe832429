package ui

import (
	"fmt"

	"github.com/pkg/browser"
)

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}
