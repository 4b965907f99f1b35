// Package ellipsoid implements the minimal geodetic collaborator surface the
// evaluator needs: metres-per-degree scale factors at a point, and the
// geodetic/geocentric (XYZ) conversions used by Model.CalcXYZFunc.
// Full datum transformation (Helmert parameters, multiple historical
// ellipsoids) is out of scope; only the semi-major axis and inverse
// flattening carried in a model's metadata are required.
package ellipsoid

import "math"

const (
	toRadians = math.Pi / 180
	toDegrees = 180 / math.Pi
)

// Ellipsoid is a reference ellipsoid defined by its semi-major axis (metres)
// and inverse flattening, as published in a model's metadata.csv
// (ellipsoid_a, ellipsoid_rf).
type Ellipsoid struct {
	A  float64 // semi-major axis, metres
	Rf float64 // inverse flattening
}

// New builds an Ellipsoid from its metadata representation.
func New(a, rf float64) Ellipsoid {
	return Ellipsoid{A: a, Rf: rf}
}

func (e Ellipsoid) flattening() float64 {
	if e.Rf == 0 {
		return 0
	}
	return 1 / e.Rf
}

// eccentricitySquared returns e² = 2f − f².
func (e Ellipsoid) eccentricitySquared() float64 {
	f := e.flattening()
	return 2*f - f*f
}

// semiMinorAxis returns b = a·(1−f).
func (e Ellipsoid) semiMinorAxis() float64 {
	return e.A * (1 - e.flattening())
}

// MetresPerDegree returns the local scale factors (dedln, dndlt): metres per
// degree of longitude and latitude respectively, at the given geodetic point.
func (e Ellipsoid) MetresPerDegree(lon, lat float64) (dedln, dndlt float64) {
	phi := lat * toRadians
	sinPhi := math.Sin(phi)
	e2 := e.eccentricitySquared()

	denom := 1 - e2*sinPhi*sinPhi
	nu := e.A / math.Sqrt(denom)               // prime-vertical radius of curvature
	rho := e.A * (1 - e2) / math.Pow(denom, 1.5) // meridional radius of curvature

	dedln = toRadians * nu * math.Cos(phi)
	dndlt = toRadians * rho
	return dedln, dndlt
}

// XYZ converts a geodetic point (lon, lat in degrees, height in metres) to
// geocentric cartesian coordinates on this ellipsoid.
func (e Ellipsoid) XYZ(lon, lat, hgt float64) (x, y, z float64) {
	phi := lat * toRadians
	lambda := lon * toRadians
	e2 := e.eccentricitySquared()

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinLambda, cosLambda := math.Sin(lambda), math.Cos(lambda)

	nu := e.A / math.Sqrt(1-e2*sinPhi*sinPhi)

	x = (nu + hgt) * cosPhi * cosLambda
	y = (nu + hgt) * cosPhi * sinLambda
	z = (nu*(1-e2) + hgt) * sinPhi
	return x, y, z
}

// Geodetic converts geocentric cartesian coordinates to a geodetic point
// (lon, lat in degrees, height in metres) using Bowring's (1985) closed-form
// approximation.
func (e Ellipsoid) Geodetic(x, y, z float64) (lon, lat, hgt float64) {
	a, b := e.A, e.semiMinorAxis()
	e2 := e.eccentricitySquared()
	eps2 := e2 / (1 - e2)

	p := math.Sqrt(x*x + y*y)
	r := math.Sqrt(p*p + z*z)

	tanBeta := (b * z) / (a * p) * (1 + eps2*b/r)
	sinBeta := tanBeta / math.Sqrt(1+tanBeta*tanBeta)
	cosBeta := 0.0
	if tanBeta != 0 {
		cosBeta = sinBeta / tanBeta
	}

	phi := 0.0
	if !math.IsNaN(cosBeta) {
		phi = math.Atan2(z+eps2*b*sinBeta*sinBeta*sinBeta, p-e2*a*cosBeta*cosBeta*cosBeta)
	}
	lambda := math.Atan2(y, x)

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	nu := a / math.Sqrt(1-e2*sinPhi*sinPhi)
	h := p*cosPhi + z*sinPhi - (a*a)/nu

	return lambda * toDegrees, phi * toDegrees, h
}
