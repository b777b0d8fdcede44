// Package catalog holds the compiled-in Tamil Nadu district table served
// when no dynamic source knows about a district.
package catalog

type District struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Area   string   `json:"area"`
	Taluks []string `json:"taluks"`
}

// Catalog is an immutable, ordered district table.
type Catalog struct {
	districts []District
	byID      map[int64]int
}

func New(districts []District) *Catalog {
	c := &Catalog{
		districts: make([]District, len(districts)),
		byID:      make(map[int64]int, len(districts)),
	}
	for i, d := range districts {
		d.Taluks = append([]string(nil), d.Taluks...)
		c.districts[i] = d
		if _, dup := c.byID[d.ID]; !dup {
			c.byID[d.ID] = i
		}
	}
	return c
}

// Default returns the Tamil Nadu catalog.
func Default() *Catalog {
	return New(tamilNadu)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.districts)
}

// All returns a copy of every entry in catalog order.
func (c *Catalog) All() []District {
	if c == nil {
		return nil
	}
	out := make([]District, len(c.districts))
	for i, d := range c.districts {
		d.Taluks = append([]string(nil), d.Taluks...)
		out[i] = d
	}
	return out
}

func (c *Catalog) ByID(id int64) (District, bool) {
	if c == nil {
		return District{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return District{}, false
	}
	d := c.districts[i]
	d.Taluks = append([]string(nil), d.Taluks...)
	return d, true
}

var tamilNadu = []District{
	{ID: 1, Name: "Chennai", Area: "426 km²", Taluks: []string{"Egmore", "Mylapore", "Tondiarpet", "Perambur"}},
	{ID: 2, Name: "Coimbatore", Area: "4,723 km²", Taluks: []string{"Coimbatore North", "Coimbatore South", "Pollachi", "Mettupalayam"}},
	{ID: 3, Name: "Madurai", Area: "3,741 km²", Taluks: []string{"Madurai North", "Madurai South", "Melur", "Vadipatti"}},
	{ID: 4, Name: "Tiruchirappalli", Area: "4,404 km²", Taluks: []string{"Lalgudi", "Manapparai", "Musiri", "Srirangam"}},
	{ID: 5, Name: "Salem", Area: "5,245 km²", Taluks: []string{"Salem", "Attur", "Mettur", "Omalur"}},
	{ID: 6, Name: "Tirunelveli", Area: "3,907 km²", Taluks: []string{"Ambasamudram", "Nanguneri", "Radhapuram", "Tirunelveli"}},
	{ID: 7, Name: "Erode", Area: "6,036 km²", Taluks: []string{"Erode", "Bhavani", "Sathyamangalam", "Gobichettipalayam"}},
	{ID: 17, Name: "Vellore", Area: "6,077 km²", Taluks: []string{"Vellore", "Katpadi", "Gudiyatham", "Arakkonam"}},
	{ID: 8, Name: "Thanjavur", Area: "3,411 km²", Taluks: []string{"Thanjavur", "Pattukkottai", "Kumbakonam", "Orathanadu"}},
	{ID: 9, Name: "Tiruppur", Area: "5,192 km²", Taluks: []string{"Avinashi", "Tiruppur North", "Tiruppur South", "Uthukuli"}},
	{ID: 10, Name: "Kanchipuram", Area: "1,656 km²", Taluks: []string{"Kancheepuram", "Kundrathur", "Walajabad", "Sriperumbudur"}},
	{ID: 11, Name: "Thoothukudi", Area: "4,621 km²", Taluks: []string{"Alwarthirunagari", "Karunkulam", "Pudur", "Thoothukudi"}},
	{ID: 12, Name: "Dindigul", Area: "6,266.6 km²", Taluks: []string{"Dindigul", "Oddanchatram", "Palani", "Nilakottai"}},
	{ID: 13, Name: "Krishnagiri", Area: "5,414.4 km²", Taluks: []string{"Krishnagiri", "Hosur", "Thally", "Kaveripattinam"}},
	{ID: 14, Name: "Nagapattinam", Area: "1,416 km²", Taluks: []string{"Kilvelur", "Nagapattinam", "Thirukkuvalai", "Vedaranyam"}},
	{ID: 15, Name: "Villupuram", Area: "3,725.54 km²", Taluks: []string{"Gingee", "Villupuram", "Tindivanam", "Vikravandi", "Mailam"}},
	{ID: 16, Name: "Tiruvallur", Area: "3,394 km²", Taluks: []string{"Avadi", "Tiruvallur", "Gummidipoondi", "Ponneri", "Poonamallee", "Uthukottai"}},
}
