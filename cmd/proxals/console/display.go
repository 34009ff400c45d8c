package console

import (
	"fmt"

	"github.com/mklimuk/proxals/monitor"
)

// Update renders one poll result the way the sensor page shows it.
func Update(u monitor.Update) {
	if u.Err != nil {
		PInfof(PictoBulb, "Ambient Light Luminance: %s", Red("Error"))
		PInfof(PictoProximity, "Proximity of the Device: %s", Red("Error"))
		PInfof(PictoStop, "Status: %s", Red(u.Status))
		return
	}
	PInfof(PictoBulb, "Ambient Light Luminance: %s lux", White(fmt.Sprintf("%.2f", u.Reading.AmbientLux)))
	PInfof(PictoProximity, "Proximity of the Device: %s", White(u.Reading.Proximity))
	PInfof(PictoStatus, "Status: %s", Green(u.Status))
}
