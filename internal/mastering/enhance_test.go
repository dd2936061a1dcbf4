package mastering

import (
	"math"
	"testing"

	"github.com/earmark-audio/earmark/internal/dsp"
)

func TestSmoothstep(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"below lo", 0.1, 0},
		{"at lo", 0.2, 0},
		{"midpoint", 0.5, 0.5},
		{"at hi", 0.8, 1},
		{"above hi", 0.95, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := smoothstep(0.2, 0.8, tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("smoothstep(0.2, 0.8, %v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}

	prev := -1.0
	for x := 0.0; x <= 1.0; x += 0.01 {
		got := smoothstep(0.2, 0.8, x)
		if got < prev {
			t.Fatalf("smoothstep not monotonic at x=%v: %v < %v", x, got, prev)
		}
		prev = got
	}
}

func TestApplyGain(t *testing.T) {
	chunk := sineChunk(440, -12, 4410, 2)
	before := cloneChunk(chunk)

	doubling := 20 * math.Log10(2)
	applyGain(chunk, doubling)
	for c := range chunk {
		for i := range chunk[c] {
			want := before[c][i] * 2
			if math.Abs(chunk[c][i]-want) > 1e-9 {
				t.Fatalf("channel %d sample %d = %v, want %v", c, i, chunk[c][i], want)
			}
		}
	}

	applyGain(before, 0)
	second := sineChunk(440, -12, 4410, 2)
	for c := range before {
		for i := range before[c] {
			if before[c][i] != second[c][i] {
				t.Fatal("zero gain modified samples")
			}
		}
	}
}

func TestStereoWiden(t *testing.T) {
	const frames = 4410
	mid := sineChunk(200, -6, frames, 1)[0]
	side := sineChunk(330, -12, frames, 1)[0]
	chunk := make([][]float64, 2)
	chunk[0] = make([]float64, frames)
	chunk[1] = make([]float64, frames)
	for i := 0; i < frames; i++ {
		chunk[0][i] = mid[i] + side[i]
		chunk[1][i] = mid[i] - side[i]
	}

	stereoWiden(chunk, 0.5)
	for i := 0; i < frames; i++ {
		gotMid := (chunk[0][i] + chunk[1][i]) / 2
		gotSide := (chunk[0][i] - chunk[1][i]) / 2
		if math.Abs(gotMid-mid[i]) > 1e-12 {
			t.Fatalf("mid changed at %d: %v != %v", i, gotMid, mid[i])
		}
		if math.Abs(gotSide-1.5*side[i]) > 1e-12 {
			t.Fatalf("side not scaled at %d: %v != %v", i, gotSide, 1.5*side[i])
		}
	}
}

func TestStereoWidenLeavesMonoAlone(t *testing.T) {
	chunk := sineChunk(440, -6, 2205, 1)
	want := cloneChunk(chunk)
	stereoWiden(chunk, 0.5)
	for i := range chunk[0] {
		if chunk[0][i] != want[0][i] {
			t.Fatal("mono chunk modified")
		}
	}

	stereo := sineChunk(440, -6, 2205, 2)
	wantStereo := cloneChunk(stereo)
	stereoWiden(stereo, 0)
	for c := range stereo {
		for i := range stereo[c] {
			if stereo[c][i] != wantStereo[c][i] {
				t.Fatal("zero amount modified samples")
			}
		}
	}
}

func TestSoftClipPassesQuietMaterial(t *testing.T) {
	chunk := sineChunk(440, -12, 4410, 2)
	want := cloneChunk(chunk)
	softClipChunk(chunk, -6, -1)
	for c := range chunk {
		for i := range chunk[c] {
			if chunk[c][i] != want[c][i] {
				t.Fatalf("sample under the threshold changed at [%d][%d]", c, i)
			}
		}
	}
}

func TestSoftClipHoldsCeiling(t *testing.T) {
	chunk := constChunk(1.5, 2205, 2)
	softClipChunk(chunk, -6, -1)

	ceiling := dsp.DBToLinear(-1)
	threshold := dsp.DBToLinear(-6)
	for _, ch := range chunk {
		for i, x := range ch {
			if math.Abs(x) >= ceiling {
				t.Fatalf("sample %d = %v, at or over ceiling %v", i, x, ceiling)
			}
			if math.Abs(x) <= threshold {
				t.Fatalf("sample %d = %v, hot input collapsed under the knee", i, x)
			}
		}
	}
}

func TestSoftClipContinuousAtKnee(t *testing.T) {
	threshold := dsp.DBToLinear(-6.0)
	in := threshold * (1 + 1e-6)
	chunk := [][]float64{{in}}
	softClipChunk(chunk, -6, -1)
	if math.Abs(chunk[0][0]-in) > 1e-9 {
		t.Fatalf("knee discontinuity: %v -> %v", in, chunk[0][0])
	}
}

func TestLimitPeaksHoldsCeiling(t *testing.T) {
	chunk := constChunk(1.2, 8820, 2)
	limitPeaks(chunk, testSR, -1)

	ceiling := dsp.DBToLinear(-1)
	for _, ch := range chunk {
		for i, x := range ch {
			if math.Abs(x) > ceiling+1e-9 {
				t.Fatalf("sample %d = %v over ceiling %v", i, x, ceiling)
			}
		}
	}
}

func TestLimitPeaksLeavesQuietMaterialUntouched(t *testing.T) {
	chunk := sineChunk(440, -12, 8820, 2)
	want := cloneChunk(chunk)
	limitPeaks(chunk, testSR, -1)
	for c := range chunk {
		for i := range chunk[c] {
			if chunk[c][i] != want[c][i] {
				t.Fatalf("quiet material modified at [%d][%d]", c, i)
			}
		}
	}
}

func TestLimitPeaksRecoversAfterSpike(t *testing.T) {
	const frames = 44100
	chunk := constChunk(0.5, frames, 1)
	chunk[0][0] = 1.5

	limitPeaks(chunk, testSR, -1)

	if last := chunk[0][frames-1]; last < 0.495 {
		t.Fatalf("gain never released: last sample %v, want near 0.5", last)
	}
	if first := chunk[0][0]; math.Abs(first) > dsp.DBToLinear(-1)+1e-9 {
		t.Fatalf("spike escaped the limiter: %v", first)
	}
}

func TestExpandPushesApartLevels(t *testing.T) {
	const (
		burstFrames = 8820  // 0.2 s
		totalFrames = 88200 // 2 s
	)
	loud := sineChunk(330, -6, burstFrames, 1)[0]
	quiet := sineChunk(330, -26, totalFrames-burstFrames, 1)[0]
	chunk := [][]float64{append(append([]float64(nil), loud...), quiet...)}

	peakBefore := chunkPeakDB(chunk)
	quietBefore := segmentRMSDB(chunk[0], 52920, 79380)

	expand(chunk, testSR, 2.0)

	peakAfter := chunkPeakDB(chunk)
	quietAfter := segmentRMSDB(chunk[0], 52920, 79380)

	// The burst sits well above the mean, so its gain pins at +lift/2; the
	// long quiet stretch is pulled the other way.
	if lift := peakAfter - peakBefore; lift < 0.85 || lift > 1.1 {
		t.Errorf("burst lift = %.2f dB, want about +1", lift)
	}
	if drop := quietBefore - quietAfter; drop < 0.5 || drop > 1.1 {
		t.Errorf("quiet drop = %.2f dB, want about 0.8", drop)
	}
}

func TestExpandZeroLiftIsIdentity(t *testing.T) {
	chunk := sineChunk(440, -12, 8820, 2)
	want := cloneChunk(chunk)
	expand(chunk, testSR, 0)
	for c := range chunk {
		for i := range chunk[c] {
			if chunk[c][i] != want[c][i] {
				t.Fatal("zero lift modified samples")
			}
		}
	}
}

func TestExpandIgnoresSilence(t *testing.T) {
	chunk := constChunk(0, 8820, 2)
	expand(chunk, testSR, 2)
	for _, ch := range chunk {
		for i, x := range ch {
			if x != 0 {
				t.Fatalf("silence modified at %d: %v", i, x)
			}
		}
	}
}

func TestChunkRMSDB(t *testing.T) {
	if got := chunkRMSDB(nil); got != levelFloorDB {
		t.Errorf("empty chunk = %v, want floor %v", got, levelFloorDB)
	}
	if got := chunkRMSDB(constChunk(0, 4410, 2)); got != levelFloorDB {
		t.Errorf("silent chunk = %v, want floor %v", got, levelFloorDB)
	}

	chunk := sineChunk(441, -6, testSR, 1)
	want := -6 - 20*math.Log10(math.Sqrt2)
	if got := chunkRMSDB(chunk); math.Abs(got-want) > 0.02 {
		t.Errorf("sine RMS = %v, want %v", got, want)
	}
}
