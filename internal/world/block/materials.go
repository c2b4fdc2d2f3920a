package block

// Константы материалов
const (
	// Базовые типы блоков
	Air   Material = iota // 0
	Stone                 // 1
	Grass                 // 2
	Dirt                  // 3
	Sand                  // 4
	Water                 // 5

	// Для возможности расширения, оставляем большие промежутки между категориями

	// Брёвна и древесина (начиная с 100)
	OakLog       Material = 100
	OakWood      Material = 101
	SpruceLog    Material = 102
	BirchLog     Material = 103
	JungleLog    Material = 104
	AcaciaLog    Material = 105
	DarkOakLog   Material = 106
	MangroveLog  Material = 107
	CherryLog    Material = 108
	CrimsonStem  Material = 109
	WarpedStem   Material = 110
	MangroveRoot Material = 111

	// Листва (начиная с 200)
	OakLeaves       Material = 200
	SpruceLeaves    Material = 201
	BirchLeaves     Material = 202
	JungleLeaves    Material = 203
	AcaciaLeaves    Material = 204
	DarkOakLeaves   Material = 205
	MangroveLeaves  Material = 206
	CherryLeaves    Material = 207
	AzaleaLeaves    Material = 208
	NetherWartBlock Material = 209
	WarpedWartBlock Material = 210
	Shroomlight     Material = 211

	// Предметы (начиная с 1000), в мире не размещаются
	OakSapling        Material = 1000
	SpruceSapling     Material = 1001
	BirchSapling      Material = 1002
	JungleSapling     Material = 1003
	AcaciaSapling     Material = 1004
	DarkOakSapling    Material = 1005
	MangrovePropagule Material = 1006
	CherrySapling     Material = 1007
	Stick             Material = 1008
	Apple             Material = 1009
	CrimsonFungus     Material = 1010
	WarpedFungus      Material = 1011
)

func init() {
	solid := func(name string) Info { return Info{Name: name, Placeable: true, Solid: true} }
	soft := func(name string) Info { return Info{Name: name, Placeable: true} }
	item := func(name string) Info { return Info{Name: name} }

	MustRegister(Air, soft("air"))
	MustRegister(Stone, solid("stone"))
	MustRegister(Grass, solid("grass_block"))
	MustRegister(Dirt, solid("dirt"))
	MustRegister(Sand, solid("sand"))
	MustRegister(Water, soft("water"))

	MustRegister(OakLog, solid("oak_log"))
	MustRegister(OakWood, solid("oak_wood"))
	MustRegister(SpruceLog, solid("spruce_log"))
	MustRegister(BirchLog, solid("birch_log"))
	MustRegister(JungleLog, solid("jungle_log"))
	MustRegister(AcaciaLog, solid("acacia_log"))
	MustRegister(DarkOakLog, solid("dark_oak_log"))
	MustRegister(MangroveLog, solid("mangrove_log"))
	MustRegister(CherryLog, solid("cherry_log"))
	MustRegister(CrimsonStem, solid("crimson_stem"))
	MustRegister(WarpedStem, solid("warped_stem"))
	MustRegister(MangroveRoot, solid("mangrove_roots"))

	MustRegister(OakLeaves, soft("oak_leaves"))
	MustRegister(SpruceLeaves, soft("spruce_leaves"))
	MustRegister(BirchLeaves, soft("birch_leaves"))
	MustRegister(JungleLeaves, soft("jungle_leaves"))
	MustRegister(AcaciaLeaves, soft("acacia_leaves"))
	MustRegister(DarkOakLeaves, soft("dark_oak_leaves"))
	MustRegister(MangroveLeaves, soft("mangrove_leaves"))
	MustRegister(CherryLeaves, soft("cherry_leaves"))
	MustRegister(AzaleaLeaves, soft("azalea_leaves"))
	MustRegister(NetherWartBlock, solid("nether_wart_block"))
	MustRegister(WarpedWartBlock, solid("warped_wart_block"))
	MustRegister(Shroomlight, solid("shroomlight"))

	MustRegister(OakSapling, item("oak_sapling"))
	MustRegister(SpruceSapling, item("spruce_sapling"))
	MustRegister(BirchSapling, item("birch_sapling"))
	MustRegister(JungleSapling, item("jungle_sapling"))
	MustRegister(AcaciaSapling, item("acacia_sapling"))
	MustRegister(DarkOakSapling, item("dark_oak_sapling"))
	MustRegister(MangrovePropagule, item("mangrove_propagule"))
	MustRegister(CherrySapling, item("cherry_sapling"))
	MustRegister(Stick, item("stick"))
	MustRegister(Apple, item("apple"))
	MustRegister(CrimsonFungus, item("crimson_fungus"))
	MustRegister(WarpedFungus, item("warped_fungus"))
}
