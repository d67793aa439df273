package tiffglob

import "fmt"

// Coords maps an axis name to its label values.
type Coords map[string][]string

// Attrs carries per-scene metadata: the raw TIFF tag table of the
// scene's first page, plus the ImageDescription value when present.
type Attrs struct {
	Tags        map[uint16]any
	Description string
}

// SceneID returns the deterministic identifier of a scene index.
func SceneID(scene int) string {
	return fmt.Sprintf("Image:%d", scene)
}

// ChannelID returns the deterministic identifier of a channel index
// within a scene.
func ChannelID(scene, channel int) string {
	return fmt.Sprintf("Channel:%d:%d", scene, channel)
}

// channelNamesForScene resolves the caller-supplied channel names for
// one scene and validates them against the realized shape. A nil
// result means identifiers should be synthesized.
func (r *Reader) channelNamesForScene(scene int, dims []string, shape []int) ([]string, error) {
	var names []string
	switch {
	case r.channelNested != nil:
		names = r.channelNested[scene]
	case r.channelFlat != nil:
		names = r.channelFlat
	default:
		return nil, nil
	}

	idx := -1
	for i, d := range dims {
		if d == DimChannel {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: provided channel names for scene with no channel dimension; scene dims: %v, provided channel names: %v",
			ErrConflictingArguments, dims, names)
	}

	if len(names) != shape[idx] {
		return nil, fmt.Errorf("%w: number of channel names provided does not match the size of the channel dimension for this scene; scene shape: %v, dims: %v, provided channel names: %v",
			ErrConflictingArguments, shape, dims, names)
	}
	return names, nil
}

// coordsFor builds the axis label coordinates for one scene,
// synthesizing channel identifiers when no names were supplied.
func coordsFor(dims []string, shape []int, scene int, channelNames []string) Coords {
	coords := Coords{}
	if channelNames != nil {
		coords[DimChannel] = channelNames
		return coords
	}
	for i, d := range dims {
		if d == DimChannel {
			ids := make([]string, shape[i])
			for c := range ids {
				ids[c] = ChannelID(scene, c)
			}
			coords[DimChannel] = ids
		}
	}
	return coords
}
