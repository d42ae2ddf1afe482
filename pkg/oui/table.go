/*
 * Copyright 2025 Subterra Systems Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package oui

import "github.com/subterra/tunnelsense/pkg/models"

// Builtin vendor prefix tables. Personal-device prefixes label an address
// mobile; infrastructure prefixes cover routers, access points, single-board
// computers and the mesh hardware itself.

type vendorTable struct {
	vendor   string
	prefixes []string
}

var mobileVendors = []vendorTable{
	{"Apple iPhone", []string{
		"000393", "000A95", "0017F2", "001B63", "001EC2", "002312",
		"0025BC", "002608", "040CCE", "041552", "041E64", "0469F2",
		"04DB56", "04F7E4", "0C3E9F", "0C74C2", "1040F3", "14205E",
		"147DDA", "18AF8F", "1CABA7", "20A2E4", "24A074", "283737",
		"2C1F23", "3035AD", "3090AB", "34A395", "38B54D", "3C2EFF",
		"4083DE", "444C0C", "48746E", "4C3C16", "50ED3C", "54724F",
		"5855CA", "5C95AE", "60F445", "64B0A6", "68AE20", "6C7220",
		"701CE7", "74E2F5", "784F43", "7C6D62", "80BE05", "843835",
		"88665A", "8C8590", "907240", "94E96A", "98FE94", "9C04EB",
		"A0999B", "A45E60", "A851AB", "AC87A3", "B065BD", "B4F0AB",
		"B8782E", "BC3BAF", "C09AD0", "C4B301", "C82A14", "CC25EF",
		"D023DB", "D4909C", "D81D72", "DC2B2A", "E0ACCB", "E48B7F",
		"E8802E", "EC3586", "F02475", "F4F15A", "F82793", "FC253F",
	}},
	{"Samsung Android", []string{
		"0007AB", "000E07", "001247", "001599", "001632", "0017C9",
		"001A8A", "001D25", "001EE1", "002119", "002339", "002637",
		"08373D", "0C1420", "0C8910", "101DC0", "147F3C", "183A2D",
		"1C5A3E", "2013E0", "244B81", "283926", "2C4401", "30074D",
		"342387", "38AA3C", "3C5AB4", "400E85", "440010", "485A3F",
		"4CBC42", "50CCF8", "54880E", "581FAA", "5C0A5B", "606BBD",
		"641666", "68EBC5", "6C2F2C", "70F927", "74458A", "7825AD",
		"7C6166", "805719", "84253F", "88329B", "8C7712", "90187C",
		"94350A", "98523D", "9C28EF", "A021B7", "A4EBD3", "A8DB03",
		"AC5F3E", "B072BF", "B46293", "B85E7B", "BC1485", "C0BDD1",
		"C44202", "C8BA94", "CC07AB", "D0176A", "D487D8", "D890E8",
		"DC7196", "E091F5", "E432CB", "E8508B", "EC1F72", "F025B7",
		"F40F24", "F8042E", "FCA621",
	}},
	{"Google Pixel", []string{
		"001A11", "04C06F", "5C514F", "64C5AA", "AC3743", "B47739",
		"C4438F", "DC2B61", "F88FCA",
	}},
	{"Huawei Android", []string{
		"001882", "001E10", "00259E", "04BD88", "087A4C", "0C96BF",
		"101F74", "14F6D8", "184F32", "1C1D67", "20F3A3", "240995",
		"28C68E", "2CAB25", "30B49E", "346BD3", "38BC01", "3C8BFE",
		"404D8E", "446D6C", "48DB50", "4C5499", "508F4C", "5425EA",
		"582AF7", "5CC9D3", "60DE44", "643E8C", "6813E2", "6CE873",
		"70723C", "74A722", "78D6F0", "7CB21B", "8038BC", "84A423",
		"88E3AB", "8C34FD", "90671C", "94049C", "98541B", "9C28BF",
		"A08CFD", "A45046", "A81E84", "ACE2D3", "B0E235", "B4CD27",
		"B808CF", "BC25E5", "C0EE40", "C40BCB", "C81479", "CCB11A",
		"D07E35", "D46A6A", "D8492F", "DCD89D", "E0191D", "E458B8",
		"E8CD2D", "EC233D", "F07959", "F42853", "F898B9", "FC48EF",
	}},
	{"OnePlus Android", []string{
		"0090E6", "080581", "0C8DDB", "10683F", "14D127", "184AAE",
		"1CB094", "20689D", "24CF24", "28E14C", "2CF432", "30E171",
		"3497F6", "38A4ED", "3CBD3E", "40B076", "449160", "48C1AC",
		"4C49E3", "508A06", "54E43A", "58CB52", "5CA6E6", "60AB14",
		"64BC0C", "68EBAE", "6C2408", "704A0E", "744CA1", "782BCB",
		"7C1C4E", "807ABF", "84C7EA", "88835D", "8C1AB0", "90E868",
		"94659C", "9822EF", "9C07A3", "A0C589", "A434D9", "A826D9",
		"AC220B", "B0A737", "B4527E", "B89A2A", "C005C2", "C4072F",
		"C8FF77", "CC1531", "D05349", "D46E0E", "D855A3", "DC91A7",
		"E0B94D", "E442A6", "E892A4", "ECF4BB", "F0272D", "F40E22",
		"F8633F", "FC05A6",
	}},
}

var infrastructureVendors = []vendorTable{
	{"Cisco Router/Switch", []string{
		"00000C", "000142", "000143", "000196", "000197", "000216",
		"000217", "00024A", "00024B", "0002B9", "0002BA", "000331",
		"000332", "00036B", "00036C", "0003A0", "0003E3", "0003FD",
		"0003FE", "000427", "000428", "00044D", "00046D", "00049A",
		"0004C0", "0004C1", "0004DD", "000C42",
	}},
	{"Ubiquiti UniFi AP", []string{
		"0418D6", "18E829", "245A4C", "44D9E7", "687251", "7483C2",
		"788A20", "802AA8", "B4FBE4", "DC9FDB", "E43883", "F09FC2",
		"FCECDA",
	}},
	{"TP-Link Router/AP", []string{
		"14CC20", "50C7BF", "60E327", "6C5AB0", "8416F9", "A0F3C1",
		"B04E26", "C025A2", "E8DE27", "F4EC38",
	}},
	{"Raspberry Pi", []string{
		"B827EB", "DCA632", "E45F01",
	}},
	{"Digi XBee", []string{
		"0013A2",
	}},
	{"Rajant Mesh Node", []string{
		"000E8E", "001C9E", "00247E",
	}},
}

func builtinEntries() []Entry {
	var entries []Entry

	for _, table := range mobileVendors {
		for _, prefix := range table.prefixes {
			entries = append(entries, Entry{
				Prefix: prefix,
				Vendor: table.vendor,
				Class:  models.ClassificationMobile,
			})
		}
	}

	for _, table := range infrastructureVendors {
		for _, prefix := range table.prefixes {
			entries = append(entries, Entry{
				Prefix: prefix,
				Vendor: table.vendor,
				Class:  models.ClassificationInfrastructure,
			})
		}
	}

	return entries
}
