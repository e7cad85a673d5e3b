package ridecalc

import (
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
)

type Calculator interface {
	Distance(from, to models.Cell) int
	Duration(distance int) time.Duration
	Fare(distance int) float64
	Quote(from, to models.Cell) models.Quote
}

// Tariff holds the pricing constants of the city.
type Tariff struct {
	BaseFare       float64
	PerCell        float64
	SecondsPerCell float64
}

type CalculatorImpl struct {
	tariff Tariff
}

func New(tariff Tariff) *CalculatorImpl {
	return &CalculatorImpl{tariff: tariff}
}

// Distance is the Manhattan distance in cells; rides move along grid streets.
func (c *CalculatorImpl) Distance(from, to models.Cell) int {
	return from.Manhattan(to)
}

func (c *CalculatorImpl) Duration(distance int) time.Duration {
	return time.Duration(float64(distance) * c.tariff.SecondsPerCell * float64(time.Second))
}

// Fare = base fare + distance * per-cell rate.
func (c *CalculatorImpl) Fare(distance int) float64 {
	return c.tariff.BaseFare + float64(distance)*c.tariff.PerCell
}

func (c *CalculatorImpl) Quote(from, to models.Cell) models.Quote {
	d := c.Distance(from, to)
	return models.Quote{
		Distance:   d,
		ETASeconds: c.Duration(d).Seconds(),
		Price:      c.Fare(d),
	}
}
