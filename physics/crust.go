package physics

import "math"

// SeaLevel is the normalized height of the water surface above the mantle
// free surface.
const SeaLevel = 1.0

// Densities of the floating-block model in g/cm³.
type Densities struct {
	Mantle      float64
	Oceanic     float64
	Continental float64
	Water       float64
}

// DefaultDensities returns Earth-like densities.
func DefaultDensities() Densities {
	return Densities{
		Mantle:      3.3,
		Oceanic:     3.0,
		Continental: 2.7,
		Water:       1.0,
	}
}

// CrustCell is the physical state attached to one grid cell.
type CrustCell struct {
	Height    float64 // top of the block above the mantle free surface
	Thickness float64
	Density   float64
	Area      float64
	Plate     int
	CreatedAt int // step the crust was formed at

	// Displacement applied in the last relocation, radians per step
	VelNorth float64
	VelEast  float64
}

// Mass returns thickness × area × density.
func (c CrustCell) Mass() float64 {
	return c.Thickness * c.Area * c.Density
}

// Isostasy derives crust properties from the equilibrium of a block floating
// on the mantle, loaded by sea water wherever its top is below sea level.
type Isostasy struct {
	Densities Densities
	SeaLevel  float64

	// Heights at or above this value form continental crust.
	ContinentalHeight float64
	// Area of every cell, 4πR²/N.
	CellArea float64
}

// NewIsostasy returns a model for a sphere of radius with cells cells.
func NewIsostasy(d Densities, continentalHeight, radius float64, cells int) Isostasy {
	return Isostasy{
		Densities:         d,
		SeaLevel:          SeaLevel,
		ContinentalHeight: continentalHeight,
		CellArea:          4 * math.Pi * radius * radius / float64(cells),
	}
}

// DensityFor picks the regime density for a height.
func (m Isostasy) DensityFor(height float64) float64 {
	if height >= m.ContinentalHeight {
		return m.Densities.Continental
	}
	return m.Densities.Oceanic
}

// ThicknessFor returns the thickness a block of density must have to float
// with its top at height.
func (m Isostasy) ThicknessFor(height, density float64) float64 {
	rm, rw := m.Densities.Mantle, m.Densities.Water
	if rm <= density {
		return height
	}
	if height >= m.SeaLevel {
		return height * rm / (rm - density)
	}
	return (height*(rm-rw) + rw*m.SeaLevel) / (rm - density)
}

// HeightFor is the inverse of ThicknessFor.
func (m Isostasy) HeightFor(thickness, density float64) float64 {
	rm, rw := m.Densities.Mantle, m.Densities.Water
	if rm <= density {
		return thickness
	}
	if thickness >= m.SeaLevel*rm/(rm-density) {
		return thickness * (1 - density/rm)
	}
	return (thickness*(rm-density) - rw*m.SeaLevel) / (rm - rw)
}

// DeriveCrustCell builds a cell floating with its top at height.
func (m Isostasy) DeriveCrustCell(height float64) CrustCell {
	density := m.DensityFor(height)
	return CrustCell{
		Height:    height,
		Thickness: m.ThicknessFor(height, density),
		Density:   density,
		Area:      m.CellArea,
	}
}

// UpdateCrustCellHeight recomputes the equilibrium height after thickness or
// density changed. Every mutation of either must be followed by a call.
func (m Isostasy) UpdateCrustCellHeight(c *CrustCell) {
	if c.Thickness < 0 {
		c.Thickness = 0
	}
	c.Height = m.HeightFor(c.Thickness, c.Density)
}

// AddMass merges mass of the given density into the cell, blending density
// by volume, and re-floats it.
func (m Isostasy) AddMass(c *CrustCell, mass, density float64) {
	if mass <= 0 || density <= 0 || c.Area <= 0 {
		return
	}
	volume := c.Thickness * c.Area
	added := mass / density
	total := volume + added
	c.Density = (c.Density*volume + mass) / total
	c.Thickness = total / c.Area
	m.UpdateCrustCellHeight(c)
}

// Deposit adds mass at the cell's own density.
func (m Isostasy) Deposit(c *CrustCell, mass float64) {
	if mass <= 0 || c.Density <= 0 || c.Area <= 0 {
		return
	}
	c.Thickness += mass / (c.Density * c.Area)
	m.UpdateCrustCellHeight(c)
}

// RemoveMass takes up to mass out of the cell and returns what was removed.
func (m Isostasy) RemoveMass(c *CrustCell, mass float64) float64 {
	if mass <= 0 || c.Density <= 0 || c.Area <= 0 {
		return 0
	}
	removed := math.Min(mass, c.Mass())
	c.Thickness -= removed / (c.Density * c.Area)
	m.UpdateCrustCellHeight(c)
	return removed
}

// MassToRaise returns the mass at the cell's density needed to lift its top
// to height, or 0 if it is already there.
func (m Isostasy) MassToRaise(c CrustCell, height float64) float64 {
	need := m.ThicknessFor(height, c.Density) - c.Thickness
	if need <= 0 {
		return 0
	}
	return need * c.Density * c.Area
}

// TotalMass sums the mass of all cells.
func TotalMass(cells []CrustCell) float64 {
	total := 0.0
	for _, c := range cells {
		total += c.Mass()
	}
	return total
}
