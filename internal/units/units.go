// Package units defines typed physical quantities so that a weight can never be
// passed where a height is expected.
package units

import (
	"math"
	"strconv"
)

// Kilograms is a body mass.
type Kilograms float64

// Centimeters is a body height.
type Centimeters float64

// Years is an age in whole years.
type Years int

// Calories is an energy amount in kcal (per day unless stated otherwise).
type Calories int

// Grams is a macronutrient amount per day.
type Grams int

// Milliliters is a fluid volume per day.
type Milliliters int

// KgPerWeek is a signed rate of weight change. Negative means loss.
type KgPerWeek float64

func (k Kilograms) Float() float64 { return float64(k) }

// Round1 rounds to one decimal place, the precision profiles are stored at.
func (k Kilograms) Round1() Kilograms {
	return Kilograms(math.Round(float64(k)*10) / 10)
}

func (k Kilograms) String() string { return formatFloat(float64(k)) + "kg" }

func (c Centimeters) Float() float64 { return float64(c) }

func (c Centimeters) String() string { return formatFloat(float64(c)) + "cm" }

func (y Years) String() string { return strconv.Itoa(int(y)) + "y" }

func (c Calories) String() string { return strconv.Itoa(int(c)) + " kcal" }

func (g Grams) String() string { return strconv.Itoa(int(g)) + "g" }

func (m Milliliters) String() string { return strconv.Itoa(int(m)) + "ml" }

// Liters returns the volume in liters, for display.
func (m Milliliters) Liters() float64 { return float64(m) / 1000 }

func (r KgPerWeek) Float() float64 { return float64(r) }

// Abs returns the magnitude of the rate.
func (r KgPerWeek) Abs() KgPerWeek { return KgPerWeek(math.Abs(float64(r))) }

func (r KgPerWeek) String() string { return formatFloat(float64(r)) + " kg/week" }

// formatFloat prints at most two decimals and drops trailing zeros: 75 -> "75", 72.5 -> "72.5".
func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
