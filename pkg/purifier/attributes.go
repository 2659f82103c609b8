package purifier

import (
	"strconv"
	"time"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// Human-readable attribute names.
const (
	AttrAirQualityIndex  = "air_quality_index"
	AttrChildLock        = "child_lock"
	AttrDeviceID         = "device_id"
	AttrDeviceVersion    = "device_version"
	AttrDisplayBacklight = "display_backlight"
	AttrAllergenIndex    = "indoor_allergen_index"
	AttrLanguage         = "language"
	AttrLightBrightness  = "light_brightness"
	AttrModelID          = "model_id"
	AttrName             = "name"
	AttrPM25             = "pm25"
	AttrPreferredIndex   = "preferred_index"
	AttrProductID        = "product_id"
	AttrRuntime          = "runtime"
	AttrSoftwareVersion  = "software_version"
	AttrTVOC             = "total_volatile_organic_compounds"
	AttrType             = "type"
	AttrWifiVersion      = "wifi_version"
)

var displayBacklightNames = map[string]string{
	"0": "off",
	"1": "on",
}

var preferredIndexNames = map[string]string{
	"0": "Indoor Allergen Index",
	"1": "PM2.5",
}

// attrSpec translates one raw status key to a named attribute,
// optionally through a value table or a conversion function.
type attrSpec struct {
	attr    string
	key     string
	values  map[string]string
	convert func(string) string
}

var attrSpecs = []attrSpec{
	{attr: AttrAirQualityIndex, key: KeyAirQualityIndex},
	{attr: AttrChildLock, key: KeyChildLock},
	{attr: AttrDeviceID, key: KeyDeviceID},
	{attr: AttrDeviceVersion, key: KeyDeviceVersion},
	{attr: AttrDisplayBacklight, key: KeyDisplayBacklight, values: displayBacklightNames},
	{attr: AttrAllergenIndex, key: KeyAllergenIndex},
	{attr: AttrLanguage, key: KeyLanguage},
	{attr: AttrLightBrightness, key: KeyLightBrightness},
	{attr: AttrModelID, key: KeyModelID},
	{attr: AttrName, key: KeyName},
	{attr: AttrPM25, key: KeyPM25},
	{attr: AttrPreferredIndex, key: KeyPreferredIndex, values: preferredIndexNames},
	{attr: AttrProductID, key: KeyProductID},
	{attr: AttrRuntime, key: KeyRuntime, convert: formatRuntime},
	{attr: AttrSoftwareVersion, key: KeySoftwareVersion},
	{attr: AttrTVOC, key: KeyTVOC},
	{attr: AttrType, key: KeyType},
	{attr: AttrWifiVersion, key: KeyWifiVersion},
}

// Attributes converts a raw status snapshot to named attributes.
// Unknown raw keys are skipped; raw values without a table entry pass
// through unchanged.
func Attributes(status wire.Status) map[string]string {
	attrs := make(map[string]string, len(attrSpecs))
	for _, spec := range attrSpecs {
		raw, ok := status[spec.key]
		if !ok {
			continue
		}
		switch {
		case spec.values != nil:
			if named, ok := spec.values[raw]; ok {
				raw = named
			}
		case spec.convert != nil:
			raw = spec.convert(raw)
		}
		attrs[spec.attr] = raw
	}
	return attrs
}

// formatRuntime renders the device's runtime milliseconds counter as a
// duration, e.g. "26h3m4s".
func formatRuntime(raw string) string {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	d := time.Duration(ms) * time.Millisecond
	return d.Round(time.Second).String()
}
