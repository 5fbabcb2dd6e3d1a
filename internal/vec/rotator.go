package vec

import "math"

// Rotator ориентация в градусах (pitch/yaw/roll)
type Rotator struct {
	Pitch, Yaw, Roll float64
}

// Quat кватернион вращения
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat кватернион без вращения
var IdentityQuat = Quat{W: 1}

// ContainsNaN возвращает true, если хотя бы один угол не конечен
func (r Rotator) ContainsNaN() bool {
	return !isFinite(r.Pitch) || !isFinite(r.Yaw) || !isFinite(r.Roll)
}

// Quaternion преобразует углы Эйлера в кватернион
func (r Rotator) Quaternion() Quat {
	const degToHalfRad = math.Pi / 360.0

	sp, cp := math.Sincos(r.Pitch * degToHalfRad)
	sy, cy := math.Sincos(r.Yaw * degToHalfRad)
	sr, cr := math.Sincos(r.Roll * degToHalfRad)

	return Quat{
		X: cr*sp*sy - sr*cp*cy,
		Y: -cr*sp*cy - sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}
