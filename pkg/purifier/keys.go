package purifier

// Raw status keys spoken by the device.
const (
	KeyPower            = "pwr"
	KeyMode             = "mode"
	KeySpeed            = "om"
	KeyLightBrightness  = "aqil"
	KeyDisplayBacklight = "uil"
	KeyPreferredIndex   = "ddp"
	KeyChildLock        = "cl"
	KeyLanguage         = "lang"
	KeyAllergenIndex    = "iaql"
	KeyPM25             = "pm25"
	KeyTVOC             = "tvoc"
	KeyRuntime          = "Runtime"
	KeyAirQualityIndex  = "aqi"
	KeyName             = "name"
	KeyType             = "type"
	KeyModelID          = "modelid"
	KeySoftwareVersion  = "swversion"
	KeyDeviceID         = "DeviceId"
	KeyDeviceVersion    = "DeviceVersion"
	KeyWifiVersion      = "WifiVersion"
	KeyProductID        = "ProductId"
)
