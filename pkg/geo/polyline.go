package geo

// Polyline codec: delta-encoded signed var-ints, 5 bits per character,
// offset by 63 into printable ASCII. Polyline5 truncates coordinates to
// five decimal places; Polyline6 keeps the full fixed-point precision.

// EncodePolyline5 encodes coordinates at 1e5 precision.
func EncodePolyline5(coords []Coordinate) string { return encodePolyline(coords, 10) }

// EncodePolyline6 encodes coordinates at full 1e6 precision.
func EncodePolyline6(coords []Coordinate) string { return encodePolyline(coords, 1) }

// DecodePolyline5 decodes a 1e5-precision polyline string.
func DecodePolyline5(s string) []Coordinate { return decodePolyline(s, 10) }

// DecodePolyline6 decodes a 1e6-precision polyline string.
func DecodePolyline6(s string) []Coordinate { return decodePolyline(s, 1) }

func encodePolyline(coords []Coordinate, divisor int32) string {
	if len(coords) == 0 {
		return ""
	}

	// Worst case is 6 chars per value; 2 values per coordinate.
	out := make([]byte, 0, len(coords)*8)
	var prevLat, prevLon int32

	for _, c := range coords {
		// Integer division truncates toward zero, matching the
		// decimal-place truncation of the wire format.
		lat := c.Lat / divisor
		lon := c.Lon / divisor
		out = appendVarint(out, lat-prevLat)
		out = appendVarint(out, lon-prevLon)
		prevLat = lat
		prevLon = lon
	}

	return string(out)
}

func appendVarint(dst []byte, value int32) []byte {
	v := value << 1
	if v < 0 {
		v = ^v
	}
	for v >= 0x20 {
		dst = append(dst, byte((0x20|(v&0x1f))+63))
		v >>= 5
	}
	return append(dst, byte(v+63))
}

func decodePolyline(s string, divisor int32) []Coordinate {
	var coords []Coordinate
	var lat, lon int32
	i := 0

	readVarint := func() (int32, bool) {
		var result int32
		var shift uint
		for {
			if i >= len(s) {
				return 0, false
			}
			b := int32(s[i]) - 63
			i++
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), true
		}
		return result >> 1, true
	}

	for i < len(s) {
		dLat, ok := readVarint()
		if !ok {
			break
		}
		dLon, ok := readVarint()
		if !ok {
			break
		}
		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: lat * divisor, Lon: lon * divisor})
	}

	return coords
}
