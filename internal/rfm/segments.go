package rfm

// Descriptor carries the user-facing metadata for one customer segment.
type Descriptor struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	ColorTag    string `json:"color_tag"`
}

var segmentDescriptors = map[string]Descriptor{
	SegmentChampions: {
		Label:       "Pelanggan Juara",
		Description: "Baru saja belanja, sering, dan bernilai tinggi.",
		ColorTag:    "emerald",
	},
	SegmentLoyal: {
		Label:       "Pelanggan Setia",
		Description: "Sering belanja dengan nilai transaksi besar.",
		ColorTag:    "green",
	},
	SegmentPromising: {
		Label:       "Berpotensi Naik",
		Description: "Baru kembali belanja, frekuensi masih rendah.",
		ColorTag:    "sky",
	},
	SegmentAtRisk: {
		Label:       "Berisiko Pergi",
		Description: "Dulu aktif dan bernilai, sudah lama tidak kembali.",
		ColorTag:    "amber",
	},
	SegmentLost: {
		Label:       "Hilang",
		Description: "Sudah sangat lama tidak belanja.",
		ColorTag:    "red",
	},
	SegmentHibernating: {
		Label:       "Tidur Panjang",
		Description: "Jarang belanja dan sudah lama tidak kembali.",
		ColorTag:    "slate",
	},
	SegmentPotential: {
		Label:       "Potensial",
		Description: "Cukup aktif, bisa didorong menjadi pelanggan setia.",
		ColorTag:    "teal",
	},
	SegmentNeedsAttention: {
		Label:       "Perlu Perhatian",
		Description: "Pola belanja menurun, butuh penawaran ulang.",
		ColorTag:    "orange",
	},
}

// Descriptors returns the closed segment metadata table. The key set is
// exactly the eight segments the classifier can produce.
func Descriptors() map[string]Descriptor {
	result := make(map[string]Descriptor, len(segmentDescriptors))
	for segment, descriptor := range segmentDescriptors {
		result[segment] = descriptor
	}
	return result
}
