// Package register registers all components
package register

import (
	// register components.
	_ "go.viam.com/hoverbot/components/board/fake"
	_ "go.viam.com/hoverbot/components/board/periph"
	_ "go.viam.com/hoverbot/components/drive/fake"
	_ "go.viam.com/hoverbot/components/drive/hover"
	_ "go.viam.com/hoverbot/components/rangefinder/fake"
	_ "go.viam.com/hoverbot/components/rangefinder/ultrasonic"
)
