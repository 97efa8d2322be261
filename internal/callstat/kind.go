package callstat

// OperationKind identifies one instrumented engine entry point.
type OperationKind uint32

// Instrumented engine entry points. The order is part of the report layout.
const (
	KindInitialize OperationKind = iota
	KindPluginManagerList
	KindPluginManagerRead
	KindPluginManagerWrite
	KindPluginManagerNotify
	KindVfsList
	KindVfsRead
	KindVfsWrite
	KindVfsInitializePlugins
	KindMemReadEx
	KindMemReadScatter
	KindMemWrite
	KindMemVirt2Phys
	KindMemPrefetchPages
	KindPidList
	KindPidGetFromName
	KindProcessGetInformation
	KindProcessGetInformationString
	KindProcessGetMemoryMap
	KindProcessGetMemoryMapEntry
	KindProcessGetModuleMap
	KindProcessGetModuleFromName
	KindProcessGetDirectories
	KindProcessGetSections
	KindProcessGetEAT
	KindProcessGetIAT
	KindProcessGetProcAddress
	KindProcessGetModuleBase
	KindWinGetThunkEAT
	KindWinGetThunkIAT
	KindWinMemCompressionDecompressPage
	KindWinRegHiveList
	KindWinRegHiveReadEx
	KindWinRegHiveWrite
	KindWinRegEnumKeyEx
	KindWinRegEnumValue
	KindWinRegQueryValueEx
	KindWinNetGet
	KindRefresh
	KindUtilFillHexASCII
	KindPdbSymbolAddress
	KindPdbTypeSize
	KindPdbTypeChildOffset
	KindPagedCompressedMemory

	// KindMax is the highest valid OperationKind.
	KindMax = KindPagedCompressedMemory
)

// KindCount is the number of operation kinds.
const KindCount = int(KindMax) + 1

var kindNames = [KindCount]string{
	"INITIALIZE",
	"PluginManager_List",
	"PluginManager_Read",
	"PluginManager_Write",
	"PluginManager_Notify",
	"VMMDLL_VfsList",
	"VMMDLL_VfsRead",
	"VMMDLL_VfsWrite",
	"VMMDLL_VfsInitializePlugins",
	"VMMDLL_MemReadEx",
	"VMMDLL_MemReadScatter",
	"VMMDLL_MemWrite",
	"VMMDLL_MemVirt2Phys",
	"VMMDLL_MemPrefetchPages",
	"VMMDLL_PidList",
	"VMMDLL_PidGetFromName",
	"VMMDLL_ProcessGetInformation",
	"VMMDLL_ProcessGetInformationString",
	"VMMDLL_ProcessGetMemoryMap",
	"VMMDLL_ProcessGetMemoryMapEntry",
	"VMMDLL_ProcessGetModuleMap",
	"VMMDLL_ProcessGetModuleFromName",
	"VMMDLL_ProcessGetDirectories",
	"VMMDLL_ProcessGetSections",
	"VMMDLL_ProcessGetEAT",
	"VMMDLL_ProcessGetIAT",
	"VMMDLL_ProcessGetProcAddress",
	"VMMDLL_ProcessGetModuleBase",
	"VMMDLL_WinGetThunkEAT",
	"VMMDLL_WinGetThunkIAT",
	"VMMDLL_WinMemCompression_DecompressPage",
	"VMMDLL_WinRegHive_List",
	"VMMDLL_WinRegHive_ReadEx",
	"VMMDLL_WinRegHive_Write",
	"VMMDLL_WinReg_EnumKeyExW",
	"VMMDLL_WinReg_EnumValueW",
	"VMMDLL_WinReg_QueryValueExW",
	"VMMDLL_WinNet_Get",
	"VMMDLL_Refresh",
	"VMMDLL_UtilFillHexAscii",
	"VMMDLL_PdbSymbolAddress",
	"VMMDLL_PdbTypeSize",
	"VMMDLL_PdbTypeChildOffset",
	"VMM_PagedCompressedMemory",
}

// Name returns the display name of k, or "" when k is out of range.
func (k OperationKind) Name() string {
	if k > KindMax {
		return ""
	}
	return kindNames[k]
}

func (k OperationKind) String() string {
	return k.Name()
}
