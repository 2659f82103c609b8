// Package purifier maps the raw device status vocabulary of Philips
// air purifiers to typed attributes and fan speeds, and provides a Fan
// that drives a device through the airctrl client.
package purifier
