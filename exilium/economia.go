package exilium

// Rarity buckets in draw order. Lootbox rarity selection walks this slice;
// rankings and display colors key off it too.
var RarityOrder = []string{"comum", "raro", "epico", "lendario", "ancestral"}

// Raridade is per-rarity display and value data.
type Raridade struct {
	ValorMultiplicador float64 `json:"valor_multiplicador" bson:"valor_multiplicador"`
	Cor                uint32  `json:"cor,omitempty" bson:"cor,omitempty"`
}

// CatalogItem describes one item in the reference catalog. The same shape is
// used across all catalog categories; forge-only fields are zero elsewhere.
type CatalogItem struct {
	Nome      string `json:"nome" bson:"nome"`
	Emoji     string `json:"emoji,omitempty" bson:"emoji,omitempty"`
	Descricao string `json:"descricao,omitempty" bson:"descricao,omitempty"`
	Tipo      string `json:"tipo,omitempty" bson:"tipo,omitempty"`
	Raridade  string `json:"raridade,omitempty" bson:"raridade,omitempty"`
	// Valor is the shop price; ValorBase is the sell-back base when it
	// differs from the price.
	Valor     int64 `json:"valor,omitempty" bson:"valor,omitempty"`
	ValorBase int64 `json:"valor_base,omitempty" bson:"valor_base,omitempty"`

	// Forge-only.
	CustoAlmas   int64            `json:"custo_almas,omitempty" bson:"custo_almas,omitempty"`
	Ingredientes map[string]int64 `json:"ingredientes,omitempty" bson:"ingredientes,omitempty"`
	TaxaFalha    float64          `json:"taxa_falha,omitempty" bson:"taxa_falha,omitempty"`
}

// LootboxReward is one entry in a tier's reward pool: either a currency
// range (tipo "moeda") or an item reference (tipo "item").
type LootboxReward struct {
	Tipo string `json:"tipo" bson:"tipo"`
	Min  int64  `json:"min,omitempty" bson:"min,omitempty"`
	Max  int64  `json:"max,omitempty" bson:"max,omitempty"`
	ID   string `json:"id,omitempty" bson:"id,omitempty"`
}

// SoulRange is an inclusive currency range resolved by a uniform draw.
type SoulRange struct {
	Min int64 `json:"min" bson:"min"`
	Max int64 `json:"max" bson:"max"`
}

// EconomiaConfig is the read-only economy reference data: rarity tables,
// shop catalog and lootbox reward tables. It is loaded once from the store
// and only replaced by an administrative import, never by gameplay.
type EconomiaConfig struct {
	Raridades     map[string]*Raridade    `json:"raridades" bson:"raridades"`
	LojaItems     map[string]*CatalogItem `json:"loja_items" bson:"loja_items"`
	ItensPassivos map[string]*CatalogItem `json:"itens_passivos" bson:"itens_passivos"`
	ItensCraft    map[string]*CatalogItem `json:"itens_craft" bson:"itens_craft"`
	ItensForja    map[string]*CatalogItem `json:"itens_forja" bson:"itens_forja"`

	// LootboxRecompensas maps tier -> rarity -> reward pool.
	LootboxRecompensas map[string]map[string][]*LootboxReward `json:"lootbox_recompensas" bson:"lootbox_recompensas"`
	// LootboxPesos maps tier -> rarity -> integer weight.
	LootboxPesos map[string]map[string]int64 `json:"lootbox_pesos" bson:"lootbox_pesos"`
	// LootboxBonus maps tier -> the unconditional souls bonus rolled on
	// every open, independent of the rarity draw.
	LootboxBonus map[string]*SoulRange `json:"lootbox_bonus" bson:"lootbox_bonus"`

	// MarketFeePercent is the fixed market transaction fee, e.g. 0.05.
	MarketFeePercent float64 `json:"market_fee_percent" bson:"market_fee_percent"`
}

// FindItem looks an item up across the catalog categories, in the same
// precedence order the sell path has always used. Returns nil if unknown.
func (c *EconomiaConfig) FindItem(itemID string) *CatalogItem {
	for _, cat := range []map[string]*CatalogItem{c.ItensCraft, c.ItensForja, c.ItensPassivos, c.LojaItems} {
		if item, ok := cat[itemID]; ok {
			return item
		}
	}
	return nil
}

// Multiplier returns the value multiplier for a rarity, defaulting to 1.
func (c *EconomiaConfig) Multiplier(raridade string) float64 {
	if r, ok := c.Raridades[raridade]; ok && r.ValorMultiplicador > 0 {
		return r.ValorMultiplicador
	}
	return 1.0
}

// FeePercent returns the market fee, defaulting to 5%.
func (c *EconomiaConfig) FeePercent() float64 {
	if c.MarketFeePercent > 0 {
		return c.MarketFeePercent
	}
	return 0.05
}

// DefaultEconomia returns the built-in reference data used when the store
// has no imported economy yet.
func DefaultEconomia() *EconomiaConfig {
	return &EconomiaConfig{
		Raridades: map[string]*Raridade{
			"comum":     {ValorMultiplicador: 1.0, Cor: 0x4A4A4A},
			"raro":      {ValorMultiplicador: 1.5, Cor: 0x0099FF},
			"epico":     {ValorMultiplicador: 2.5, Cor: 0x9933FF},
			"lendario":  {ValorMultiplicador: 5.0, Cor: 0xFFD700},
			"ancestral": {ValorMultiplicador: 10.0, Cor: 0xFF4500},
		},
		LojaItems: map[string]*CatalogItem{
			"lootbox_nivel1": {Nome: "Baú Nível 1", Emoji: "📦", Tipo: "lootbox", Raridade: "comum", Valor: 150},
			"lootbox_nivel2": {Nome: "Baú Nível 2", Emoji: "🎁", Tipo: "lootbox", Raridade: "raro", Valor: 400},
			"lootbox_nivel3": {Nome: "Baú Nível 3", Emoji: "⭐", Tipo: "lootbox", Raridade: "epico", Valor: 900},
			"pocao_xp":       {Nome: "Poção de XP", Emoji: "🧪", Tipo: "consumivel", Raridade: "raro", Valor: 250},
		},
		ItensPassivos: map[string]*CatalogItem{
			"amuleto_sorte": {Nome: "Amuleto da Sorte", Emoji: "🍀", Tipo: "especial", Raridade: "epico", Valor: 800},
		},
		ItensCraft: map[string]*CatalogItem{
			"minerio_ferro": {Nome: "Minério de Ferro", Emoji: "⛏️", Raridade: "comum", ValorBase: 20},
			"couro_lobo":    {Nome: "Couro de Lobo", Emoji: "🐺", Raridade: "comum", ValorBase: 30},
		},
		ItensForja: map[string]*CatalogItem{
			"espada_ferro": {
				Nome: "Espada de Ferro", Emoji: "⚔️", Raridade: "raro", ValorBase: 300,
				CustoAlmas:   200,
				Ingredientes: map[string]int64{"minerio_ferro": 5},
				TaxaFalha:    0.15,
			},
		},
		LootboxPesos: map[string]map[string]int64{
			"nivel1": {"comum": 60, "raro": 30},
			"nivel2": {"comum": 40, "raro": 40, "epico": 10},
			"nivel3": {"comum": 25, "raro": 40, "epico": 10, "lendario": 20},
		},
		LootboxRecompensas: map[string]map[string][]*LootboxReward{
			"nivel1": {
				"comum": {{Tipo: "moeda", Min: 20, Max: 80}},
				"raro":  {{Tipo: "moeda", Min: 80, Max: 200}, {Tipo: "item", ID: "minerio_ferro"}},
			},
			"nivel2": {
				"comum": {{Tipo: "moeda", Min: 50, Max: 150}},
				"raro":  {{Tipo: "moeda", Min: 150, Max: 350}, {Tipo: "item", ID: "couro_lobo"}},
				"epico": {{Tipo: "item", ID: "amuleto_sorte"}},
			},
			"nivel3": {
				"comum":    {{Tipo: "moeda", Min: 100, Max: 300}},
				"raro":     {{Tipo: "moeda", Min: 300, Max: 600}},
				"epico":    {{Tipo: "item", ID: "amuleto_sorte"}, {Tipo: "moeda", Min: 600, Max: 1200}},
				"lendario": {{Tipo: "item", ID: "espada_ferro"}, {Tipo: "moeda", Min: 1200, Max: 2500}},
			},
		},
		LootboxBonus: map[string]*SoulRange{
			"nivel1": {Min: 5, Max: 25},
			"nivel2": {Min: 25, Max: 75},
			"nivel3": {Min: 75, Max: 200},
		},
		MarketFeePercent: 0.05,
	}
}
