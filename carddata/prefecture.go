package carddata

import "strings"

// Prefecture enumerates the 47 prefectures, used for the issuing public
// safety commission on driver's licenses.
type Prefecture int

const (
	PrefectureUnknown Prefecture = iota
	Hokkaido
	Aomori
	Iwate
	Miyagi
	Akita
	Yamagata
	Fukushima
	Ibaraki
	Tochigi
	Gunma
	Saitama
	Chiba
	Tokyo
	Kanagawa
	Niigata
	Toyama
	Ishikawa
	Fukui
	Yamanashi
	Nagano
	Gifu
	Shizuoka
	Aichi
	Mie
	Shiga
	Kyoto
	Osaka
	Hyogo
	Nara
	Wakayama
	Tottori
	Shimane
	Okayama
	Hiroshima
	Yamaguchi
	Tokushima
	Kagawa
	Ehime
	Kochi
	Fukuoka
	Saga
	Nagasaki
	Kumamoto
	Oita
	Miyazaki
	Kagoshima
	Okinawa
)

var prefectureNames = [...]string{
	Hokkaido: "北海道", Aomori: "青森", Iwate: "岩手", Miyagi: "宮城",
	Akita: "秋田", Yamagata: "山形", Fukushima: "福島", Ibaraki: "茨城",
	Tochigi: "栃木", Gunma: "群馬", Saitama: "埼玉", Chiba: "千葉",
	Tokyo: "東京", Kanagawa: "神奈川", Niigata: "新潟", Toyama: "富山",
	Ishikawa: "石川", Fukui: "福井", Yamanashi: "山梨", Nagano: "長野",
	Gifu: "岐阜", Shizuoka: "静岡", Aichi: "愛知", Mie: "三重",
	Shiga: "滋賀", Kyoto: "京都", Osaka: "大阪", Hyogo: "兵庫",
	Nara: "奈良", Wakayama: "和歌山", Tottori: "鳥取", Shimane: "島根",
	Okayama: "岡山", Hiroshima: "広島", Yamaguchi: "山口", Tokushima: "徳島",
	Kagawa: "香川", Ehime: "愛媛", Kochi: "高知", Fukuoka: "福岡",
	Saga: "佐賀", Nagasaki: "長崎", Kumamoto: "熊本", Oita: "大分",
	Miyazaki: "宮崎", Kagoshima: "鹿児島", Okinawa: "沖縄",
}

func (p Prefecture) String() string {
	if p <= PrefectureUnknown || int(p) >= len(prefectureNames) {
		return ""
	}
	return prefectureNames[p]
}

// MatchPrefecture finds the prefecture whose name appears in s, keeping
// the longest match so 神奈川 is never misread as 奈良. Equal-length ties
// resolve in enum order, which settles 東京都 on 東京 rather than 京都.
func MatchPrefecture(s string) Prefecture {
	best := PrefectureUnknown
	bestLen := 0
	for p := Hokkaido; p <= Okinawa; p++ {
		name := prefectureNames[p]
		if len(name) > bestLen && strings.Contains(s, name) {
			best = p
			bestLen = len(name)
		}
	}
	return best
}
