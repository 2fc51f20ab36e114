package stream

// DeriveBitrateKbit maps a frame size to a default video bitrate in kilobits
// per second: two bits per pixel per second, floored to whole kilobits. The
// factor was tuned empirically on Raspberry Pi camera hardware; 1280x720
// lands at 1800k and 2592x1944 at 9841k. Treat the mapping as a product
// decision, not a formula to re-derive.
func DeriveBitrateKbit(width, height int) int {
	return width * height * 2 / 1024
}
