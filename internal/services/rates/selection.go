package rates

import (
	"github.com/BearBump/ShipBox/internal/models"
)

// reduce оставляет самую дешёвую и самую быструю опцию.
// Выбор не зависит от порядка входа: равенства разрешаются по (carrier, service).
func reduce(quotes []models.Quote) []models.Quote {
	if len(quotes) == 0 {
		return nil
	}

	cheapest := quotes[0]
	fastest := quotes[0]
	for _, q := range quotes[1:] {
		if cheaper(q, cheapest) {
			cheapest = q
		}
		if faster(q, fastest) {
			fastest = q
		}
	}

	cheapest.Label = LabelCheapest
	if cheapest.Key() == fastest.Key() {
		return []models.Quote{cheapest}
	}
	fastest.Label = LabelFastest
	fastest.Express = true
	return []models.Quote{cheapest, fastest}
}

// cheaper при равной цене предпочитает более медленную опцию, чтобы строго
// более быстрая осталась кандидатом на "fastest".
func cheaper(a, b models.Quote) bool {
	if c := a.OriginalPrice.Cmp(b.OriginalPrice); c != 0 {
		return c < 0
	}
	if da, db := DeliveryDays(a.DeliveryTime), DeliveryDays(b.DeliveryTime); da != db {
		return da > db
	}
	return lessKey(a, b)
}

func faster(a, b models.Quote) bool {
	da, db := DeliveryDays(a.DeliveryTime), DeliveryDays(b.DeliveryTime)
	if da != db {
		return da < db
	}
	return cheaper(a, b)
}

func lessKey(a, b models.Quote) bool {
	if a.CarrierID != b.CarrierID {
		return a.CarrierID < b.CarrierID
	}
	return a.ServiceID < b.ServiceID
}

// DeliveryDays берёт первое целое из строки срока ("3", "3-5", "cerca de 5 dias").
// Если числа нет, срок считается худшим.
func DeliveryDays(s string) int {
	n, seen := 0, false
	for _, r := range s {
		if r < '0' || r > '9' {
			if seen {
				break
			}
			continue
		}
		n = n*10 + int(r-'0')
		seen = true
		if n > unparsableDays {
			return unparsableDays
		}
	}
	if !seen {
		return unparsableDays
	}
	return n
}
