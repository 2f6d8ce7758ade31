//go:build linux

package register

import (
	// register linux only components.
	_ "go.viam.com/hoverbot/components/board/gpiochip"
)
