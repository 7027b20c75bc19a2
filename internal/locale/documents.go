package locale

import "sort"

var documentNames = map[string]map[Locale]string{
	"01aug2020_kidscode.pdf": {English: "Children's Code", Russian: "Кодекс о детях", Kyrgyz: "Балдар жөнүндө кодекс"},
	"06aug2025_civilprocedurecode.pdf": {English: "Civil Procedural Code", Russian: "Гражданский процессуальный кодекс",
		Kyrgyz: "Жарандык процесстик кодекси"},
	"09aug2025_crimeprocedurecode.pdf": {English: "Criminal Procedure Code", Russian: "Уголовно-процессуальный кодекс",
		Kyrgyz: "Кылмыш-жаза процессуалдык кодекси"},
	"10jul2025_labourcode.pdf": {English: "Labour Code", Russian: "Трудовой кодекс", Kyrgyz: "Эмгек кодекси"},
	"10jul2025_nontaxrevenuecode.pdf": {English: "Non-Tax Income Code", Russian: "Кодекс о неналоговых доходах",
		Kyrgyz: "Салыктык эмес кирешелер жөнүндө кодекс"},
	"13aug2025_offencecode.pdf": {English: "Code of Offenses", Russian: "Кодекс о правонарушениях",
		Kyrgyz: "Укук бузуулар жөнүндө кодекс"},
	"17jul2025_familycode.pdf": {English: "Family Code", Russian: "Семейный кодекс", Kyrgyz: "Үй-бүлө кодекси"},
	"28feb2025_adminprocedurecode.pdf": {English: "Administrative Procedural Code",
		Russian: "Административный процессуальный кодекс", Kyrgyz: "Административдик-процесстик кодекси"},
	"28jul2025_penalcode.pdf":          {English: "Criminal Code", Russian: "Уголовный кодекс", Kyrgyz: "Кылмыш-жаза кодекси"},
	"29apr2025_budgetcode.pdf":         {English: "Budget Code", Russian: "Бюджетный кодекс", Kyrgyz: "Бюджет кодекси"},
	"31jul2025_crimeexecutivecode.pdf": {English: "Criminal Execution Code", Russian: "Уголовно-исполнительный кодекс", Kyrgyz: "Жаза-аткаруу кодекси"},
	"31jul2025_taxcode.pdf":            {English: "Tax Code", Russian: "Налоговый кодекс", Kyrgyz: "Салык кодекси"},
	"05052021_constitution.pdf": {English: "Constitution of Kyrgyz Republic", Russian: "Конституция Кыргызской Республики",
		Kyrgyz: "Кыргыз Республикасынын Конституциясы"},
	"07022025_civilcode2.pdf": {English: "Civil Code (Part 2)", Russian: "Гражданский кодекс (часть 2)",
		Kyrgyz: "Жарандык кодекс (2-бөлүк)"},
	"07102025_civilcode1.pdf": {English: "Civil Code (Part 1)", Russian: "Гражданский кодекс (часть 1)",
		Kyrgyz: "Жарандык кодекс (1-бөлүк)"},
	"digitalcode.pdf":      {English: "Digital Code", Russian: "Цифровой кодекс", Kyrgyz: "Санарип кодекси"},
	"judicalhonorcode.pdf": {English: "Code of Ethics For Judges", Russian: "Кодекс чести судей", Kyrgyz: "Соттордун ар-намыс кодекси"},
	"landcode.pdf":         {English: "Land Code", Russian: "Земельный кодекс", Kyrgyz: "Жер кодекси"},
	"tkeaes.pdf": {English: "Customs Code of the Eurasian Economic Union",
		Russian: "Таможенный кодекс Евразийского экономического союза",
		Kyrgyz:  "Евразия экономикалык биримдигинин Бажы кодекси"},
}

// DisplayName returns the localised title of a corpus file, falling back to
// English and then to the file name itself.
func DisplayName(file string, l Locale) string {
	names, ok := documentNames[file]
	if !ok {
		return file
	}
	if n := names[l]; n != "" {
		return n
	}
	if n := names[English]; n != "" {
		return n
	}
	return file
}

// KnownDocuments returns the catalogue file names in sorted order.
func KnownDocuments() []string {
	out := make([]string, 0, len(documentNames))
	for f := range documentNames {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
