package theme

// Block is a fixed range of theme ids used to group the syllabus for
// reporting. Blocks never constrain scheduling.
type Block struct {
	Number  int `json:"number"`
	FirstID int `json:"firstId"`
	LastID  int `json:"lastId"`
}

// DefaultBlocks partitions the 21-theme syllabus into its three parts.
var DefaultBlocks = []Block{
	{Number: 1, FirstID: 1, LastID: 6},
	{Number: 2, FirstID: 7, LastID: 14},
	{Number: 3, FirstID: 15, LastID: 21},
}

// Contains reports whether the theme id falls inside the block.
func (b Block) Contains(id int) bool {
	return id >= b.FirstID && id <= b.LastID
}

// BlockFor returns the block number for a theme id, or 0 when the id is
// outside every block.
func BlockFor(blocks []Block, id int) int {
	for _, b := range blocks {
		if b.Contains(id) {
			return b.Number
		}
	}
	return 0
}
