package sensor

// Keys of the total energy counter per meter mode.
const (
	TotalEnergyKeyStandard   = "EAST"
	TotalEnergyKeyHistorical = "BASE"
)

// DefaultSensors returns the sensors exposed when the configuration lists none.
func DefaultSensors(mode string) []*Sensor {
	if mode == "historical" {
		return []*Sensor{
			{Key: "ADCO", Name: "teleinfo Adresse du compteur", Strategy: Raw},
			{Key: "OPTARIF", Name: "teleinfo Option tarifaire", Strategy: Enum},
			{Key: "ISOUSC", Name: "teleinfo Intensité souscrite", Unit: "A", Strategy: Integer},
			{Key: "IINST", Name: "teleinfo Intensité instantanée", Unit: "A", Strategy: Integer},
			{Key: "PAPP", Name: "teleinfo Puissance apparente", Unit: "VA", Strategy: Integer},
			{Key: TotalEnergyKeyHistorical, Name: "teleinfo Index option base", Unit: "Wh", Strategy: Integer},
		}
	}

	return []*Sensor{
		{Key: "NGTF", Name: "teleinfo Nom du calendrier tarifaire fournisseur", Strategy: Enum},
		{Key: "LTARF", Name: "teleinfo Libellé tarif fournisseur en cours", Strategy: Enum},
		{Key: "PRM", Name: "teleinfo PRM", Strategy: Enum},
		{Key: "IRMS1", Name: "teleinfo Courant efficace, phase 1", Unit: "A", Strategy: Integer},
		{Key: "PCOUP", Name: "teleinfo Puissance app. de coupure", Unit: "kVA", Strategy: Integer},
		{Key: "SINSTS", Name: "teleinfo Puissance app. instantanée soutirée", Unit: "VA", Strategy: Integer},
		{Key: "SMAXSN", Name: "teleinfo Puissance app. max. soutirée n", Unit: "VA", Strategy: Integer},
		{Key: TotalEnergyKeyStandard, Name: "teleinfo Energie active soutirée totale", Unit: "Wh", Strategy: Integer},
	}
}

// DefaultTotalEnergyKey returns the total energy key for a meter mode.
func DefaultTotalEnergyKey(mode string) string {
	if mode == "historical" {
		return TotalEnergyKeyHistorical
	}
	return TotalEnergyKeyStandard
}
