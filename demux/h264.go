package demux

import "fmt"

// H.264 NAL unit types (ITU-T H.264 Table 7-1).
const (
	NALTypeSlice      = 1
	NALTypeIDR        = 5
	NALTypeSEI        = 6
	NALTypeSPS        = 7
	NALTypePPS        = 8
	NALTypeAUD        = 9
	NALTypeFillerData = 12
)

// SPSInfo holds the fields of an H.264 SPS the player needs.
type SPSInfo struct {
	Width           int
	Height          int
	ProfileIDC      byte
	ConstraintFlags byte
	LevelIDC        byte
}

// CodecString returns the RFC 6381 codec parameter (e.g. "avc1.64001F").
func (s SPSInfo) CodecString() string {
	return fmt.Sprintf("avc1.%02X%02X%02X", s.ProfileIDC, s.ConstraintFlags, s.LevelIDC)
}

// ParseAnnexB splits an H.264 Annex B byte stream into NAL units.
func ParseAnnexB(data []byte) []NALUnit {
	return splitAnnexB(data, 1, func(nal []byte) byte { return nal[0] & 0x1F })
}

// IsKeyframe reports whether the NAL type is an IDR slice.
func IsKeyframe(nalType byte) bool { return nalType == NALTypeIDR }

// profiles whose SPS carries chroma format and scaling matrices.
func highProfile(idc byte) bool {
	switch idc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		return true
	}
	return false
}

// ParseSPS extracts resolution and profile/level from an SPS NAL unit
// (header byte included, start code excluded). Frame cropping is applied.
func ParseSPS(nalu []byte) (SPSInfo, error) {
	if len(nalu) < 4 {
		return SPSInfo{}, errShortNAL
	}
	br := &bitReader{data: unescapeRBSP(nalu[1:])}

	info := SPSInfo{
		ProfileIDC:      byte(br.bits(8)),
		ConstraintFlags: byte(br.bits(8)),
		LevelIDC:        byte(br.bits(8)),
	}
	br.ue() // seq_parameter_set_id

	chromaFormat := uint(1)
	separatePlanes := false
	if highProfile(info.ProfileIDC) {
		if chromaFormat = br.ue(); chromaFormat == 3 {
			separatePlanes = br.flag()
		}
		// bit depths and qpprime_y_zero_transform_bypass_flag
		br.ue()
		br.ue()
		br.skip(1)

		if scalingMatrix := br.flag(); scalingMatrix {
			lists := 8
			if chromaFormat == 3 {
				lists = 12
			}
			for i := range lists {
				if br.flag() {
					size := 16
					if i >= 6 {
						size = 64
					}
					skipScalingList(br, size)
				}
			}
		}
	}

	br.ue() // log2_max_frame_num_minus4
	switch br.ue() { // pic_order_cnt_type
	case 0:
		br.ue()
	case 1:
		br.skip(1)
		br.se()
		br.se()
		for n := br.ue(); n > 0 && br.err == nil; n-- {
			br.se()
		}
	}
	br.ue()    // max_num_ref_frames
	br.skip(1) // gaps_in_frame_num_value_allowed_flag

	widthMbs := br.ue() + 1
	heightMapUnits := br.ue() + 1
	frameMbsOnly := br.bits(1)
	if frameMbsOnly == 0 {
		br.skip(1) // mb_adaptive_frame_field_flag
	}
	br.skip(1) // direct_8x8_inference_flag

	var cropL, cropR, cropT, cropB uint
	if br.flag() {
		cropL, cropR, cropT, cropB = br.ue(), br.ue(), br.ue(), br.ue()
	}
	if br.err != nil {
		return SPSInfo{}, br.err
	}

	subW, subH := uint(2), uint(2)
	switch {
	case separatePlanes || chromaFormat == 0 || chromaFormat == 3:
		subW, subH = 1, 1
	case chromaFormat == 2:
		subW, subH = 2, 1
	}
	fieldMul := 2 - frameMbsOnly

	info.Width = int(widthMbs*16 - subW*(cropL+cropR))
	info.Height = int(heightMapUnits*16*fieldMul - subH*fieldMul*(cropT+cropB))
	return info, nil
}

func skipScalingList(br *bitReader, size int) {
	last, next := 8, 8
	for range size {
		if next != 0 {
			next = (last + br.se() + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}
