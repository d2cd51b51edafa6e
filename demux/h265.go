package demux

// H.265 NAL unit types (ITU-T H.265 Table 7-1).
const (
	HEVCNALBlaWLP     = 16
	HEVCNALIDRWRadl   = 19
	HEVCNALIDRNlp     = 20
	HEVCNALCraNut     = 21
	HEVCNALVPS        = 32
	HEVCNALSPS        = 33
	HEVCNALPPS        = 34
	HEVCNALAUD        = 35
	HEVCNALFillerData = 38
	HEVCNALSEIPrefix  = 39
)

// HEVCNALType extracts the type from the first byte of the 2-byte HEVC NAL
// header: forbidden(1) | type(6) | layer_id_high(1).
func HEVCNALType(firstByte byte) byte {
	return firstByte >> 1 & 0x3F
}

// IsHEVCKeyframe reports whether the NAL type is a random access point
// (BLA, IDR or CRA).
func IsHEVCKeyframe(nalType byte) bool {
	return nalType >= HEVCNALBlaWLP && nalType <= HEVCNALCraNut
}

// ParseAnnexBHEVC splits an H.265 Annex B byte stream into NAL units.
func ParseAnnexBHEVC(data []byte) []NALUnit {
	return splitAnnexB(data, 2, func(nal []byte) byte { return HEVCNALType(nal[0]) })
}

// HEVCSPSInfo holds the fields of an HEVC SPS the player needs.
type HEVCSPSInfo struct {
	Width      int
	Height     int
	ProfileIDC byte
	TierFlag   byte
	LevelIDC   byte
}

// ParseHEVCSPS extracts resolution and profile/tier/level from an SPS NAL
// unit (2-byte header included). The conformance window is applied.
func ParseHEVCSPS(nalu []byte) (HEVCSPSInfo, error) {
	if len(nalu) < 4 {
		return HEVCSPSInfo{}, errShortNAL
	}
	br := &bitReader{data: unescapeRBSP(nalu[2:])}

	br.skip(4) // sps_video_parameter_set_id
	maxSubLayers := int(br.bits(3))
	br.skip(1) // sps_temporal_id_nesting_flag

	var info HEVCSPSInfo
	br.skip(2) // general_profile_space
	info.TierFlag = byte(br.bits(1))
	info.ProfileIDC = byte(br.bits(5))
	br.skip(32 + 48) // compatibility and constraint flags
	info.LevelIDC = byte(br.bits(8))

	if maxSubLayers > 0 {
		present := make([][2]bool, maxSubLayers)
		for i := range present {
			present[i] = [2]bool{br.flag(), br.flag()}
		}
		br.skip(2 * (8 - maxSubLayers))
		for _, p := range present {
			if p[0] {
				br.skip(88)
			}
			if p[1] {
				br.skip(8)
			}
		}
	}

	br.ue() // sps_seq_parameter_set_id
	chromaFormat := br.ue()
	if chromaFormat == 3 {
		br.skip(1) // separate_colour_plane_flag
	}
	width := br.ue()
	height := br.ue()

	if br.flag() {
		left, right, top, bottom := br.ue(), br.ue(), br.ue(), br.ue()
		subW, subH := uint(1), uint(1)
		switch chromaFormat {
		case 1:
			subW, subH = 2, 2
		case 2:
			subW = 2
		}
		width -= (left + right) * subW
		height -= (top + bottom) * subH
	}
	if br.err != nil {
		return HEVCSPSInfo{}, br.err
	}

	info.Width = int(width)
	info.Height = int(height)
	return info, nil
}
